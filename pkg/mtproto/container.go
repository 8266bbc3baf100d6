package mtproto

import (
	"bytes"

	"github.com/telemtproto/mtproto/pkg/tl"
)

// ContainerItem is one outbound message to splice into a msg_container.
type ContainerItem struct {
	MsgID int64
	SeqNo uint32
	Body  []byte
}

// BuildContainer serializes a msg_container wrapping items, such as a
// single-element container that resends a payload under its prior msg_id.
// The query manager does not call it; its resends go through the
// SendFunc unwrapped unless that function wraps them.
func BuildContainer(items []ContainerItem) ([]byte, error) {
	var buf bytes.Buffer
	w := tl.NewWriter(&buf)
	if err := w.PutUint32(msgContainerConstructor); err != nil {
		return nil, err
	}
	if err := w.PutInt32(int32(len(items))); err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := w.PutInt64(it.MsgID); err != nil {
			return nil, err
		}
		if err := w.PutInt32(int32(it.SeqNo)); err != nil {
			return nil, err
		}
		if err := w.PutInt32(int32(len(it.Body))); err != nil {
			return nil, err
		}
		if err := w.WriteRaw(it.Body); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
