package jconv

import (
	"io"
	"iter"

	"go.uber.org/zap"
)

// Iterator yields the elements of a JSON array read from a stream one at a
// time.  Use it like bufio.Scanner:
//
//	for it.Next() {
//		v := it.Value()
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// An Iterator can not be restarted.
type Iterator struct {
	rd    *Reader
	read  ReadFunc
	items []any
	more  bool
	value any
	err   error
}

// IterateOver returns an iterator over the array of elem values in src,
// using buf as the chunk buffer.  A top-level null returns a nil iterator
// and no error.  If elem has no reader and a fallback is configured, the
// fallback decodes the whole array up front.
func (r *Registry) IterateOver(elem Type, src io.Reader, buf []byte) (*Iterator, error) {
	rd, err := r.NewStreamReader(src, buf)
	if err != nil {
		return nil, err
	}
	ch, err := rd.NextToken()
	if err != nil {
		return nil, err
	}
	if ch != ArrayStart {
		if rd.WasNull() {
			return nil, nil
		}
		return nil, rd.Expecting("'['")
	}
	ch, err = rd.NextToken()
	if err != nil {
		return nil, err
	}
	if ch == ArrayEnd {
		return &Iterator{}, nil
	}

	if read := r.elementReader(elem); read != nil {
		return &Iterator{rd: rd, read: read, more: true}, nil
	}
	if r.fallback != nil {
		stream, err := rd.streamFromStart()
		if err != nil {
			return nil, err
		}
		r.log.Debug("iterating through fallback", zap.Stringer("type", elem))
		v, err := r.fallback.DeserializeStream(ArrayOf(elem), stream)
		if err != nil {
			return nil, err
		}
		items, err := sliceToList(v)
		if err != nil || items == nil {
			return nil, err
		}
		return &Iterator{items: items, more: len(items) > 0}, nil
	}
	return nil, r.readerError(elem)
}

// Next decodes the next element.  It returns false at the end of the array
// or on error.  A nil Iterator, returned for a null array, is empty.
func (it *Iterator) Next() bool {
	if it == nil || !it.more || it.err != nil {
		return false
	}
	if it.rd == nil {
		it.value, it.items = it.items[0], it.items[1:]
		it.more = len(it.items) > 0
		return true
	}

	rd := it.rd
	var v any
	if rd.Last() == 'n' {
		if !rd.WasNull() {
			it.err = rd.literalError("null")
			return false
		}
	} else {
		var err error
		if v, err = it.read(rd); err != nil {
			it.err = err
			return false
		}
	}

	ch, err := rd.NextToken()
	if err != nil {
		it.err = err
		return false
	}
	switch ch {
	case Comma:
		if _, err := rd.NextToken(); err != nil {
			it.err = err
			return false
		}
	case ArrayEnd:
		it.more = false
	default:
		it.err = rd.Expecting("value-separator or end of array")
		return false
	}
	it.value = v
	return true
}

// Value returns the element decoded by the last call to Next.
func (it *Iterator) Value() any {
	if it == nil {
		return nil
	}
	return it.value
}

// Err returns the first error encountered.
func (it *Iterator) Err() error {
	if it == nil {
		return nil
	}
	return it.err
}

// All returns the remaining elements as a sequence.  Iteration stops after
// yielding the first error.
func (it *Iterator) All() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		if it == nil {
			return
		}
		for it.Next() {
			if !yield(it.Value(), nil) {
				return
			}
		}
		if it.err != nil {
			yield(nil, it.err)
		}
	}
}
