package jconv

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ReadFunc decodes the value at the reader's current token.  It is called
// with the reader positioned on the first byte of the value and must leave
// the reader on the last byte of it.
type ReadFunc func(r *Reader) (any, error)

// WriteFunc encodes v.  It is never called with a nil interface value.
type WriteFunc func(w *Writer, v any) error

// Constructor returns the default value of a type.  It is used when a
// concrete type is deserialized from "{}".  Return ErrNotConstructible to
// have "{}" parsed normally instead.
type Constructor func() (any, error)

// Object is implemented by self-describing values that know how to write
// themselves.
type Object interface {
	WriteJSON(w *Writer, omitDefaults bool) error
}

// ObjectReadFunc decodes a self-describing value.  It is called after the
// opening '{' has been consumed, with the reader on the following token.
type ObjectReadFunc func(r *Reader) (Object, error)

// ObjectBinding produces the reader of a self-describing type.  Bindings
// are resolved on first use; a binding that fails or panics is treated as
// absent.
type ObjectBinding func() (ObjectReadFunc, error)

var objectType = reflect.TypeOf((*Object)(nil)).Elem()

type ancestry struct {
	super      reflect.Type
	interfaces []reflect.Type
}

// Registry maps type descriptors to readers and writers and drives
// conversion.  Registration is expected to happen during initialization;
// conversion is safe for concurrent use.
type Registry struct {
	readers       map[Type]ReadFunc
	writers       map[Type]WriteFunc
	writerMap     sync.Map // Type -> Type of the registered ancestor
	hierarchy     map[reflect.Type]ancestry
	constructors  map[reflect.Type]Constructor
	bindings      map[reflect.Type]ObjectBinding
	objectReaders sync.Map // reflect.Type -> ObjectReadFunc

	fallback     Fallback
	keys         *KeyCache
	maxDepth     int
	omitDefaults bool
	log          *zap.Logger

	readerPool sync.Pool
	writerPool sync.Pool
}

// New returns a registry configured by cfg.  Built-in converters are
// registered first, then each of cfg.Configurations in order.
func New(cfg Config) *Registry {
	r := &Registry{
		readers:      make(map[Type]ReadFunc),
		writers:      make(map[Type]WriteFunc),
		hierarchy:    make(map[reflect.Type]ancestry),
		constructors: make(map[reflect.Type]Constructor),
		bindings:     make(map[reflect.Type]ObjectBinding),
		fallback:     cfg.Fallback,
		maxDepth:     cfg.MaxDepth,
		omitDefaults: cfg.OmitDefaults,
		log:          cfg.Logger,
	}
	if r.maxDepth <= 0 {
		r.maxDepth = defaultMaxDepth
	}
	if r.log == nil {
		r.log = Logger()
	}
	if cfg.KeyCacheBits > 0 {
		r.keys = NewKeyCache(cfg.KeyCacheBits)
	}
	if !cfg.SkipBuiltins {
		registerBuiltins(r)
	}
	for _, configure := range cfg.Configurations {
		configure(r)
	}
	return r
}

// NewRegistry returns a registry with the default configuration.
func NewRegistry() *Registry {
	return New(DefaultConfig())
}

// RegisterReader registers the reader for t, replacing any previous one.  A
// nil fn disables reading t, which is reported differently from a missing
// reader.
func (r *Registry) RegisterReader(t Type, fn ReadFunc) {
	if _, ok := r.readers[t]; ok {
		r.log.Debug("replacing reader", zap.Stringer("type", t))
	}
	r.readers[t] = fn
}

// RegisterWriter registers the writer for t, replacing any previous one.  A
// nil fn disables writing t itself.  Resolution skips a disabled ancestor, so
// a descendant with no other enabled ancestor reports not-found.
func (r *Registry) RegisterWriter(t Type, fn WriteFunc) {
	if _, ok := r.writers[t]; ok {
		r.log.Debug("replacing writer", zap.Stringer("type", t))
	}
	r.writers[t] = fn
	if t.IsClass() {
		r.writerMap.Store(t, t)
	}
}

// RegisterConstructor registers the default constructor used when rt is
// deserialized from "{}".
func (r *Registry) RegisterConstructor(rt reflect.Type, fn Constructor) {
	r.constructors[rt] = fn
}

// BindObject registers the reader binding of a self-describing type.  The
// type must implement Object.
func (r *Registry) BindObject(rt reflect.Type, b ObjectBinding) error {
	if !rt.Implements(objectType) {
		return fmt.Errorf("jconv: %s does not implement jconv.Object", rt)
	}
	r.bindings[rt] = b
	r.objectReaders.Delete(rt)
	return nil
}

// DeclareHierarchy records the supertype and interfaces of rt used when
// resolving writers.  Writers registered for any declared ancestor serve rt
// when rt has none of its own.  Ancestors are searched depth first: rt, its
// supertype chain, then each interface in declaration order.
func (r *Registry) DeclareHierarchy(rt, super reflect.Type, interfaces ...reflect.Type) error {
	if rt == nil {
		return errors.New("jconv: nil type in hierarchy declaration")
	}
	if super != nil && rt.Kind() == reflect.Interface {
		return fmt.Errorf("jconv: interface %s can not declare a supertype", rt)
	}
	for _, it := range interfaces {
		if it.Kind() != reflect.Interface {
			return fmt.Errorf("jconv: %s is not an interface", it)
		}
		if !rt.Implements(it) {
			return fmt.Errorf("jconv: %s does not implement %s", rt, it)
		}
	}
	r.hierarchy[rt] = ancestry{super: super, interfaces: slices.Clone(interfaces)}
	return nil
}

// signatures lists rt followed by its declared ancestors in depth-first
// preorder, skipping types already visited.  The empty interface is never
// an ancestor.
func (r *Registry) signatures(rt reflect.Type) []reflect.Type {
	var found []reflect.Type
	r.collectSignatures(rt, &found)
	return found
}

func (r *Registry) collectSignatures(rt reflect.Type, found *[]reflect.Type) {
	if slices.Contains(*found, rt) {
		return
	}
	*found = append(*found, rt)
	a := r.hierarchy[rt]
	if a.super != nil && a.super != anyType {
		r.collectSignatures(a.super, found)
	}
	for _, it := range a.interfaces {
		r.collectSignatures(it, found)
	}
}

// isAssignableFrom reports whether values of type b are also of the
// declared type a.
func (r *Registry) isAssignableFrom(a, b reflect.Type) bool {
	return a == b || slices.Contains(r.signatures(b), a)
}

// TryFindWriter returns the writer for t, or nil.  For class descriptors
// without a writer of their own, the declared ancestors are searched and
// the first one with a writer is remembered for t.
func (r *Registry) TryFindWriter(t Type) WriteFunc {
	fn, _ := r.resolveWriter(t)
	return fn
}

func (r *Registry) resolveWriter(t Type) (WriteFunc, ErrorKind) {
	if fn, ok := r.writers[t]; ok {
		if fn == nil {
			return nil, KindDisabled
		}
		return fn, ""
	}
	if m, ok := r.writerMap.Load(t); ok {
		if fn := r.writers[m.(Type)]; fn != nil {
			return fn, ""
		}
	}
	if !t.IsClass() {
		return nil, KindNotFound
	}
	for _, sig := range r.signatures(t.d.rt)[1:] {
		st := TypeOf(sig)
		if fn := r.writers[st]; fn != nil {
			if _, loaded := r.writerMap.LoadOrStore(t, st); !loaded {
				r.log.Debug("resolved writer through ancestor", zap.Stringer("type", t), zap.Stringer("ancestor", st))
			}
			return fn, ""
		}
	}
	return nil, KindNotFound
}

// TryFindReader returns the reader registered for exactly t, or nil.
// Readers are not inherited: a reader for a supertype can not produce a
// subtype.
func (r *Registry) TryFindReader(t Type) ReadFunc {
	return r.readers[t]
}

// objectReader returns the cached reader of a self-describing type,
// resolving its binding on first use.  Failures are not cached.
func (r *Registry) objectReader(rt reflect.Type) ObjectReadFunc {
	if fn, ok := r.objectReaders.Load(rt); ok {
		return fn.(ObjectReadFunc)
	}
	b := r.bindings[rt]
	if b == nil {
		return nil
	}
	fn, err := resolveBinding(b)
	if err != nil || fn == nil {
		r.log.Debug("object binding unavailable", zap.Stringer("type", rt), zap.Error(err))
		return nil
	}
	actual, _ := r.objectReaders.LoadOrStore(rt, fn)
	return actual.(ObjectReadFunc)
}

func resolveBinding(b ObjectBinding) (fn ObjectReadFunc, err error) {
	defer func() {
		if p := recover(); p != nil {
			fn, err = nil, fmt.Errorf("binding panicked: %v", p)
		}
	}()
	return b()
}

func implementsObject(t Type) bool {
	return t.IsClass() && t.d.rt.Implements(objectType)
}

// CanSerialize reports whether values described by t can be written
// without the fallback.  Arrays of arrays are rejected.
func (r *Registry) CanSerialize(t Type) bool {
	switch t.Kind() {
	case Class:
		if implementsObject(t) || t.IsArray() && implementsObject(t.Component()) {
			return true
		}
		if r.TryFindWriter(t) != nil {
			return true
		}
		if t.IsArray() {
			component := t.Component()
			return !component.IsArray() && r.CanSerialize(component)
		}
	case Collection, GenericArray:
		component := t.Component()
		return implementsObject(component) || r.TryFindWriter(component) != nil
	}
	return false
}

// CanDeserialize reports whether values described by t can be read without
// the fallback.  Arrays of arrays are rejected.
func (r *Registry) CanDeserialize(t Type) bool {
	if t.IsClass() {
		if implementsObject(t) {
			return r.objectReader(t.d.rt) != nil
		}
		if t.IsArray() {
			component := t.Component()
			return !component.IsArray() && r.CanDeserialize(component)
		}
	}
	if r.TryFindReader(t) != nil {
		return true
	}
	switch t.Kind() {
	case Collection, GenericArray:
		component := t.Component()
		if r.TryFindReader(component) != nil {
			return true
		}
		return implementsObject(component) && r.objectReader(component.d.rt) != nil
	}
	return false
}

// construct returns the default value of a concrete type.
func (r *Registry) construct(t Type) (any, error) {
	rt := t.d.rt
	if fn := r.constructors[rt]; fn != nil {
		return fn()
	}
	switch {
	case rt.Kind() == reflect.Struct:
		return reflect.New(rt).Elem().Interface(), nil
	case rt.Kind() == reflect.Pointer && rt.Elem().Kind() == reflect.Struct:
		return reflect.New(rt.Elem()).Interface(), nil
	case rt.Kind() == reflect.Map:
		return reflect.MakeMap(rt).Interface(), nil
	}
	return nil, ErrNotConstructible
}

// resolveError builds the error for a type without a converter.  It points
// at a registered ancestor or descendant when there is one.
func (r *Registry) resolveError(op string, t Type, registered func(Type) (bool, bool)) error {
	e := &ResolveError{Kind: KindNotFound, Op: op, Type: t}
	if present, enabled := registered(t); present && !enabled {
		e.Kind = KindDisabled
		return e
	}
	if !t.IsClass() {
		return e
	}
	for _, sig := range r.signatures(t.d.rt)[1:] {
		if _, enabled := registered(TypeOf(sig)); enabled {
			e.Related = TypeOf(sig)
			return e
		}
	}
	for _, rt := range r.declaredTypes() {
		if rt == t.d.rt || !slices.Contains(r.signatures(rt), t.d.rt) {
			continue
		}
		if _, enabled := registered(TypeOf(rt)); enabled {
			e.Related = TypeOf(rt)
			return e
		}
	}
	return e
}

func (r *Registry) declaredTypes() []reflect.Type {
	types := make([]reflect.Type, 0, len(r.hierarchy))
	for rt := range r.hierarchy {
		types = append(types, rt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })
	return types
}

func (r *Registry) readerError(t Type) error {
	return r.resolveError("reader", t, func(t Type) (bool, bool) {
		fn, ok := r.readers[t]
		return ok, fn != nil
	})
}

func (r *Registry) writerError(t Type) error {
	return r.resolveError("writer", t, func(t Type) (bool, bool) {
		fn, ok := r.writers[t]
		return ok, fn != nil
	})
}

// NewReader returns a reader over body configured for this registry.
func (r *Registry) NewReader(body []byte, size int) *Reader {
	rd := NewReader(body, size)
	r.configureReader(rd)
	return rd
}

// NewStreamReader returns a stream reader configured for this registry.
func (r *Registry) NewStreamReader(src io.Reader, buf []byte) (*Reader, error) {
	rd, err := NewStreamReader(src, buf)
	if err != nil {
		return nil, err
	}
	r.configureReader(rd)
	return rd, nil
}

func (r *Registry) configureReader(rd *Reader) {
	rd.keys = r.keys
	rd.maxDepth = r.maxDepth
}
