package jconv

// Buffers larger than this are dropped instead of pooled.
const maxPooledSize = 64 << 10

// AcquireWriter returns an empty writer from the registry's pool.
func (r *Registry) AcquireWriter() *Writer {
	if w, ok := r.writerPool.Get().(*Writer); ok {
		w.Reset()
		return w
	}
	return NewWriter()
}

// ReleaseWriter returns w to the pool.  w must not be used afterward.
func (r *Registry) ReleaseWriter(w *Writer) {
	if w == nil || cap(w.buf) > maxPooledSize {
		return
	}
	r.writerPool.Put(w)
}

func (r *Registry) acquireReader(body []byte, size int) *Reader {
	rd, ok := r.readerPool.Get().(*Reader)
	if !ok {
		return r.NewReader(body, size)
	}
	rd.Reset(body, size)
	r.configureReader(rd)
	return rd
}

func (r *Registry) releaseReader(rd *Reader) {
	rd.buf = nil
	rd.src = nil
	if cap(rd.scratch) > maxPooledSize {
		rd.scratch = nil
	}
	r.readerPool.Put(rd)
}
