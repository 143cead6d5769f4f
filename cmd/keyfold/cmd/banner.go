package cmd

import (
	"fmt"
)

const banner = `
  _  __           __      _     _
 | |/ /___ _   _ / _| ___| | __| |
 | ' // _ \ | | | |_ / _ \ |/ _` + "`" + ` |
 | . \  __/ |_| |  _| (_) | | (_| |
 |_|\_\___|\__, |_|  \___/|_|\__,_|
           |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Zero-Knowledge Credential Vault - Version %s\x1b[0m\n\n", Version)
}
