package envelope

import (
	"encoding/json"
	"fmt"
)

// jsonEnvelope is the canonical wire/storage shape. The nonce field is named
// "iv" for the CBC variant and "nonce" for AEAD variants; every stored
// ciphertext is always this shape, never a bare string.
type jsonEnvelope struct {
	Ver            int    `json:"ver"`
	EncryptionType Type   `json:"encryptionType"`
	IV             []byte `json:"iv,omitempty"`
	Nonce          []byte `json:"nonce,omitempty"`
	Data           []byte `json:"data"`
	MAC            []byte `json:"mac,omitempty"`
}

func (e *Envelope) MarshalJSON() ([]byte, error) {
	je := &jsonEnvelope{
		Ver:            e.Ver,
		EncryptionType: e.EncryptionType,
		Data:           e.Data,
		MAC:            e.MAC,
	}
	switch e.EncryptionType {
	case AES256CBCHMAC:
		je.IV = e.Nonce
	default:
		je.Nonce = e.Nonce
	}
	return json.Marshal(je)
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var je jsonEnvelope
	if err := json.Unmarshal(b, &je); err != nil {
		return fmt.Errorf("unmarshaling envelope JSON: %w", err)
	}
	if je.Ver != Version {
		return fmt.Errorf("unsupported envelope version: %d", je.Ver)
	}
	if len(je.IV) > 0 && len(je.Nonce) > 0 {
		return fmt.Errorf("envelope carries both iv and nonce")
	}

	e.Ver = je.Ver
	e.EncryptionType = je.EncryptionType
	e.Data = je.Data
	e.MAC = je.MAC
	switch je.EncryptionType {
	case AES256CBCHMAC:
		if len(je.IV) == 0 {
			return fmt.Errorf("envelope type %s requires an iv", je.EncryptionType)
		}
		if len(je.MAC) == 0 {
			return fmt.Errorf("envelope type %s requires a mac", je.EncryptionType)
		}
		e.Nonce = je.IV
	default:
		if len(je.Nonce) == 0 {
			return fmt.Errorf("envelope type %s requires a nonce", je.EncryptionType)
		}
		e.Nonce = je.Nonce
	}
	return nil
}

// Unmarshal deserializes an Envelope from its canonical JSON form.
func Unmarshal(message json.RawMessage) (*Envelope, error) {
	e := &Envelope{}
	if err := e.UnmarshalJSON(message); err != nil {
		return nil, err
	}
	return e, nil
}
