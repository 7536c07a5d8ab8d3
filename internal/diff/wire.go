package diff

import (
	"fmt"

	"github.com/roach88/rewind/internal/value"
)

// Wire tags for the persisted payload format.
const (
	tagAdded    = "added"
	tagRemoved  = "removed"
	tagModified = "modified"
	tagArray    = "array"
	tagNested   = "nested"
)

// MarshalJSON encodes the payload as canonical JSON. Every delta carries
// an explicit "op" tag:
//
//	{"name":{"op":"modified","old":"Doe","new":"Not Doe"}}
func (p Payload) MarshalJSON() ([]byte, error) {
	obj, err := p.toValue()
	if err != nil {
		return nil, err
	}
	return value.MarshalCanonical(obj)
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (p *Payload) UnmarshalJSON(data []byte) error {
	obj, err := value.ParseObject(data)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	out, err := payloadFromValue(obj, "")
	if err != nil {
		return err
	}
	*p = out
	return nil
}

func (p Payload) toValue() (value.Object, error) {
	obj := make(value.Object, len(p))
	for k, d := range p {
		v, err := deltaToValue(d)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		obj[k] = v
	}
	return obj, nil
}

func deltaToValue(d Delta) (value.Object, error) {
	switch d := d.(type) {
	case Added:
		return value.Object{"op": value.String(tagAdded), "new": d.New}, nil
	case Removed:
		return value.Object{"op": value.String(tagRemoved), "old": d.Old}, nil
	case Modified:
		return value.Object{"op": value.String(tagModified), "old": d.Old, "new": d.New}, nil
	case ArrayDelta:
		ops := make(value.Array, len(d.Ops))
		for i, op := range d.Ops {
			o := value.Object{"op": value.String(string(op.Kind)), "index": value.Int(op.Index)}
			switch op.Kind {
			case OpInsert:
				o["new"] = op.New
			case OpDelete:
				o["old"] = op.Old
			case OpReplace:
				o["old"] = op.Old
				o["new"] = op.New
			case OpMove:
				o["from"] = value.Int(op.From)
			default:
				return nil, fmt.Errorf("unknown array op %q", op.Kind)
			}
			ops[i] = o
		}
		return value.Object{"op": value.String(tagArray), "ops": ops}, nil
	case Nested:
		fields, err := d.Payload.toValue()
		if err != nil {
			return nil, err
		}
		return value.Object{"op": value.String(tagNested), "fields": fields}, nil
	default:
		return nil, fmt.Errorf("unknown delta type %T", d)
	}
}

func payloadFromValue(obj value.Object, path string) (Payload, error) {
	p := make(Payload, len(obj))
	for k, v := range obj {
		d, err := deltaFromValue(v, fieldPath(path, k))
		if err != nil {
			return nil, err
		}
		p[k] = d
	}
	return p, nil
}

func deltaFromValue(v value.Value, path string) (Delta, error) {
	obj, ok := v.(value.Object)
	if !ok {
		return nil, malformed(path, "delta must be an object, got %s", value.Kind(v))
	}
	tag, _ := obj["op"].(value.String)

	switch string(tag) {
	case tagAdded:
		n, err := required(obj, "new", path)
		if err != nil {
			return nil, err
		}
		return Added{New: n}, nil
	case tagRemoved:
		o, err := required(obj, "old", path)
		if err != nil {
			return nil, err
		}
		return Removed{Old: o}, nil
	case tagModified:
		o, err := required(obj, "old", path)
		if err != nil {
			return nil, err
		}
		n, err := required(obj, "new", path)
		if err != nil {
			return nil, err
		}
		return Modified{Old: o, New: n}, nil
	case tagArray:
		raw, ok := obj["ops"].(value.Array)
		if !ok {
			return nil, malformed(path, "array delta without ops")
		}
		ops := make([]ArrayOp, len(raw))
		for i, r := range raw {
			op, err := opFromValue(r, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			ops[i] = op
		}
		return ArrayDelta{Ops: ops}, nil
	case tagNested:
		fields, ok := obj["fields"].(value.Object)
		if !ok {
			return nil, malformed(path, "nested delta without fields")
		}
		p, err := payloadFromValue(fields, path)
		if err != nil {
			return nil, err
		}
		return Nested{Payload: p}, nil
	default:
		return nil, malformed(path, "unknown delta tag %q", tag)
	}
}

func opFromValue(v value.Value, path string) (ArrayOp, error) {
	obj, ok := v.(value.Object)
	if !ok {
		return ArrayOp{}, malformed(path, "array op must be an object")
	}
	kind, _ := obj["op"].(value.String)
	idx, ok := obj["index"].(value.Int)
	if !ok {
		return ArrayOp{}, malformed(path, "array op without index")
	}
	op := ArrayOp{Kind: OpKind(kind), Index: int(idx)}

	var err error
	switch op.Kind {
	case OpInsert:
		op.New, err = required(obj, "new", path)
	case OpDelete:
		op.Old, err = required(obj, "old", path)
	case OpReplace:
		if op.Old, err = required(obj, "old", path); err == nil {
			op.New, err = required(obj, "new", path)
		}
	case OpMove:
		from, ok := obj["from"].(value.Int)
		if !ok {
			return ArrayOp{}, malformed(path, "move without from")
		}
		op.From = int(from)
	default:
		return ArrayOp{}, malformed(path, "unknown array op %q", kind)
	}
	if err != nil {
		return ArrayOp{}, err
	}
	return op, nil
}

func required(obj value.Object, key, path string) (value.Value, error) {
	v, ok := obj[key]
	if !ok {
		return nil, malformed(path, "missing %q", key)
	}
	return v, nil
}
