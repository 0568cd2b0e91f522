package store

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/value"
)

// marshalPayload converts a frame into its payload column: canonical JSON
// for next frames, the message for error frames, NULL for completions.
// Payloads with no canonical form are stored as their fmt representation.
func marshalPayload(f marble.Frame) (sql.NullString, error) {
	switch f.Kind {
	case marble.KindNext:
		data, err := value.MarshalCanonical(f.Value)
		if err != nil {
			data, err = value.MarshalCanonical(fmt.Sprint(f.Value))
			if err != nil {
				return sql.NullString{}, errors.Wrap(err, "marshal payload")
			}
		}
		return sql.NullString{String: string(data), Valid: true}, nil
	case marble.KindError:
		msg := "<nil>"
		if f.Err != nil {
			msg = f.Err.Error()
		}
		return sql.NullString{String: msg, Valid: true}, nil
	default:
		return sql.NullString{}, nil
	}
}

// unmarshalFrame rebuilds a frame from its columns.
func unmarshalFrame(tick int64, kind string, payload sql.NullString) (marble.Frame, error) {
	k, ok := marble.ParseKind(kind)
	if !ok {
		return marble.Frame{}, errors.Errorf("unknown frame kind %q", kind)
	}

	switch k {
	case marble.KindNext:
		v, err := value.UnmarshalCanonical([]byte(payload.String))
		if err != nil {
			return marble.Frame{}, errors.Wrap(err, "unmarshal payload")
		}
		return marble.Next(tick, v), nil
	case marble.KindError:
		return marble.Error(tick, errors.New(payload.String)), nil
	default:
		return marble.Complete(tick), nil
	}
}

func marshalErrors(msgs []string) (string, error) {
	list := make([]any, len(msgs))
	for i, m := range msgs {
		list[i] = m
	}
	data, err := value.MarshalCanonical(list)
	if err != nil {
		return "", errors.Wrap(err, "marshal errors")
	}
	return string(data), nil
}

func unmarshalErrors(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	v, err := value.UnmarshalCanonical([]byte(data))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal errors")
	}
	list, ok := v.([]any)
	if !ok {
		return nil, errors.Errorf("unmarshal errors: expected array, got %T", v)
	}
	msgs := make([]string, len(list))
	for i, m := range list {
		s, ok := m.(string)
		if !ok {
			return nil, errors.Errorf("unmarshal errors: element %d is %T", i, m)
		}
		msgs[i] = s
	}
	return msgs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTick(t int64) sql.NullInt64 {
	if t == marble.Never {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t, Valid: true}
}

func tickFromNull(n sql.NullInt64) int64 {
	if !n.Valid {
		return marble.Never
	}
	return n.Int64
}
