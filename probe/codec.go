package probe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Validator is implemented by the wire records which have enum-valued fields.
type Validator interface {
	Validate() error
}

// Encode packs the values in little endian. []byte and string values are copied as they are.
// It panics if the value is not fixed-size, because it's the programming error.
func Encode(values ...interface{}) []byte {
	buff := &bytes.Buffer{}
	for _, value := range values {
		switch v := value.(type) {
		case []byte:
			buff.Write(v)
		case string:
			buff.WriteString(v)
		default:
			if err := binary.Write(buff, binary.LittleEndian, v); err != nil {
				panic(fmt.Sprintf("failed to encode %T: %v", v, err))
			}
		}
	}
	return buff.Bytes()
}

// Decode unpacks the data into the pointers in order. *[]byte takes all the remaining data.
// The decoded value is validated if it implements Validator.
func Decode(data []byte, values ...interface{}) error {
	reader := bytes.NewReader(data)
	for _, value := range values {
		if rest, ok := value.(*[]byte); ok {
			*rest = make([]byte, reader.Len())
			_, _ = reader.Read(*rest)
			continue
		}

		if err := binary.Read(reader, binary.LittleEndian, value); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("failed to decode %T: %w", value, err)
		}

		if v, ok := value.(Validator); ok {
			if err := v.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// InvalidFieldError indicates the record has the enum-valued field out of its range.
type InvalidFieldError struct {
	Record string
	Field  string
	Value  int64
}

func (e InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s.%s: %d", e.Record, e.Field, e.Value)
}

type enumField struct {
	name  string
	value int64
	valid bool
}

func checkFields(record string, fields ...enumField) error {
	for _, f := range fields {
		if !f.valid {
			return InvalidFieldError{Record: record, Field: f.name, Value: f.value}
		}
	}
	return nil
}
