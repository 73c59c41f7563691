package jconv

import (
	"encoding/base64"
	"net"
	"net/url"

	"github.com/google/uuid"
)

// registerBuiltins registers the converters every registry starts with.
func registerBuiltins(r *Registry) {
	RegisterReaderFunc(r, (*Reader).ReadBool)
	RegisterWriterFunc(r, func(w *Writer, v bool) error { w.WriteBool(v); return nil })

	RegisterReaderFunc(r, (*Reader).ReadInt)
	RegisterWriterFunc(r, writeInt[int])
	RegisterReaderFunc(r, (*Reader).ReadInt8)
	RegisterWriterFunc(r, writeInt[int8])
	RegisterReaderFunc(r, (*Reader).ReadInt16)
	RegisterWriterFunc(r, writeInt[int16])
	RegisterReaderFunc(r, (*Reader).ReadInt32)
	RegisterWriterFunc(r, writeInt[int32])
	RegisterReaderFunc(r, (*Reader).ReadInt64)
	RegisterWriterFunc(r, writeInt[int64])

	RegisterReaderFunc(r, (*Reader).ReadUint)
	RegisterWriterFunc(r, writeUint[uint])
	RegisterReaderFunc(r, (*Reader).ReadUint8)
	RegisterWriterFunc(r, writeUint[uint8])
	RegisterReaderFunc(r, (*Reader).ReadUint16)
	RegisterWriterFunc(r, writeUint[uint16])
	RegisterReaderFunc(r, (*Reader).ReadUint32)
	RegisterWriterFunc(r, writeUint[uint32])
	RegisterReaderFunc(r, (*Reader).ReadUint64)
	RegisterWriterFunc(r, writeUint[uint64])

	RegisterReaderFunc(r, (*Reader).ReadFloat32)
	RegisterWriterFunc(r, (*Writer).WriteFloat32)
	RegisterReaderFunc(r, (*Reader).ReadFloat64)
	RegisterWriterFunc(r, (*Writer).WriteFloat64)

	RegisterReaderFunc(r, (*Reader).ReadDecimal)
	RegisterWriterFunc(r, func(w *Writer, d Decimal) error { w.WriteDecimal(d); return nil })

	RegisterReaderFunc(r, (*Reader).ReadString)
	RegisterWriterFunc(r, func(w *Writer, s string) error { w.WriteString(s); return nil })

	RegisterReaderFunc(r, readBase64)
	RegisterWriterFunc(r, func(w *Writer, b []byte) error {
		if b == nil {
			w.WriteNull()
			return nil
		}
		w.WriteBase64(b)
		return nil
	})

	RegisterReaderFunc(r, r.readMap)
	RegisterWriterFunc(r, func(w *Writer, m map[string]any) error { return r.writeMap(w, m) })
	RegisterReaderFunc(r, r.readUntypedList)
	RegisterReaderFunc(r, r.readValue)

	RegisterReaderFunc(r, readURL)
	RegisterWriterFunc(r, writeURL)
	RegisterReaderFunc(r, readIP)
	RegisterWriterFunc(r, writeIP)
	RegisterReaderFunc(r, readUUID)
	RegisterWriterFunc(r, func(w *Writer, id uuid.UUID) error { w.WriteASCII(`"` + id.String() + `"`); return nil })

	registerBSON(r)
}

func writeInt[T int | int8 | int16 | int32 | int64](w *Writer, n T) error {
	w.WriteInt64(int64(n))
	return nil
}

func writeUint[T uint | uint8 | uint16 | uint32 | uint64](w *Writer, n T) error {
	w.WriteUint64(uint64(n))
	return nil
}

func readBase64(rd *Reader) ([]byte, error) {
	if rd.Last() != Quote || !rd.atTokenStart() {
		return nil, rd.Expecting("base64 string")
	}
	b, err := rd.readStringBytes()
	if err != nil {
		return nil, err
	}
	out, err := base64.StdEncoding.AppendDecode(make([]byte, 0, base64.StdEncoding.DecodedLen(len(b))), b)
	if err != nil {
		return nil, rd.Invalid("base64 string", err)
	}
	return out, nil
}

func readURL(rd *Reader) (*url.URL, error) {
	s, err := rd.ReadString()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, rd.Invalid("URL", err)
	}
	return u, nil
}

func writeURL(w *Writer, u *url.URL) error {
	if u == nil {
		w.WriteNull()
		return nil
	}
	w.WriteString(u.String())
	return nil
}

func readIP(rd *Reader) (net.IP, error) {
	s, err := rd.ReadString()
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, rd.Invalid("IP address", &net.ParseError{Type: "IP address", Text: s})
	}
	return ip, nil
}

func writeIP(w *Writer, ip net.IP) error {
	if ip == nil {
		w.WriteNull()
		return nil
	}
	w.WriteString(ip.String())
	return nil
}

func readUUID(rd *Reader) (uuid.UUID, error) {
	s, err := rd.ReadString()
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, rd.Invalid("UUID", err)
	}
	return id, nil
}
