package events

import (
	"encoding/json"

	"cart-service/internal/service"
)

// envelope: то, что уходит в брокер. Версию меняем только при
// несовместимых правках полей.
type envelope struct {
	Version int `json:"version"`
	service.CartEvent
}

const envelopeVersion = 1

func encode(e service.CartEvent) (key, value []byte, err error) {
	value, err = json.Marshal(envelope{Version: envelopeVersion, CartEvent: e})
	if err != nil {
		return nil, nil, err
	}
	// события одного пользователя идут в одну партицию
	return []byte(e.UserID.String()), value, nil
}
