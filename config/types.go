package config

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/typecode"
)

// Registry holds the descriptors built from a library's type definitions.
type Registry struct {
	types map[string]*typecode.TypeCode
	order []string
}

// Lookup returns the named descriptor.
func (r *Registry) Lookup(name string) (*typecode.TypeCode, bool) {
	tc, ok := r.types[name]
	return tc, ok
}

// Names returns the type names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Parse resolves a type expression against the registry.
func (r *Registry) Parse(expr string) (*typecode.TypeCode, error) {
	return ParseType(expr, r.Lookup)
}

// Registry builds a descriptor for every type definition. Definitions may
// reference each other in any order; cycles are rejected.
func (lib *Library) Registry() (*Registry, error) {
	defs := make(map[string]*TypeDef, len(lib.Types))
	reg := &Registry{types: make(map[string]*typecode.TypeCode, len(lib.Types))}
	for i := range lib.Types {
		td := &lib.Types[i]
		if td.Name == "" {
			return nil, errors.InvalidInput(errors.PhaseConfig, []string{"types", strconv.Itoa(i)}, "missing name")
		}
		if _, dup := defs[td.Name]; dup {
			return nil, errors.InvalidInput(errors.PhaseConfig, []string{"types", td.Name}, "duplicate type")
		}
		defs[td.Name] = td
		reg.order = append(reg.order, td.Name)
	}

	b := &registryBuilder{
		defs:     defs,
		reg:      reg,
		building: make(map[string]bool),
		docs:     make(map[string]*wit.Resolve),
	}
	if lib.Source != "" {
		b.dir = filepath.Dir(lib.Source)
	}
	for _, name := range reg.order {
		if _, err := b.build(name); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

type registryBuilder struct {
	defs     map[string]*TypeDef
	reg      *Registry
	building map[string]bool
	lookErr  error

	// WIT documents by resolved path, loaded once per build.
	dir  string
	docs map[string]*wit.Resolve
}

func (b *registryBuilder) lookup(name string) (*typecode.TypeCode, bool) {
	if _, ok := b.defs[name]; !ok {
		return nil, false
	}
	tc, err := b.build(name)
	if err != nil {
		b.lookErr = err
		return nil, false
	}
	return tc, true
}

func (b *registryBuilder) build(name string) (*typecode.TypeCode, error) {
	if tc, ok := b.reg.types[name]; ok {
		return tc, nil
	}
	path := []string{"types", name}
	if b.building[name] {
		return nil, errors.InvalidInput(errors.PhaseConfig, path, "recursive type definition")
	}
	b.building[name] = true
	defer delete(b.building, name)

	td := b.defs[name]
	var (
		tc  *typecode.TypeCode
		err error
	)
	switch strings.ToLower(td.Kind) {
	case "struct":
		var members []typecode.Member
		members, err = b.members(td, path)
		if err == nil {
			tc, err = typecode.NewStruct(name, members...)
		}
	case "union":
		var disc *typecode.TypeCode
		disc, err = b.parse(td.Discriminator, append(path, "discriminator"))
		if err != nil {
			return nil, err
		}
		var members []typecode.Member
		members, err = b.members(td, path)
		if err == nil {
			tc, err = typecode.NewUnion(name, disc, members...)
		}
	case "enum":
		enumerators := make([]typecode.Enumerator, len(td.Enumerators))
		next := int32(0)
		for i, e := range td.Enumerators {
			if e.Value != nil {
				next = *e.Value
			}
			enumerators[i] = typecode.Enumerator{Name: e.Name, Ordinal: next}
			next++
		}
		tc, err = typecode.NewEnum(name, enumerators...)
	case "alias", "typedef":
		var base *typecode.TypeCode
		base, err = b.parse(td.Type, path)
		if err == nil {
			tc, err = typecode.NewAlias(name, base)
		}
	case "wit":
		tc, err = b.witType(name, td, path)
	default:
		return nil, errors.InvalidInput(errors.PhaseConfig, path, "unknown kind %q", td.Kind)
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "type "+name)
	}
	b.reg.types[name] = tc
	return tc, nil
}

// witType imports the WIT type td.Type from td.WIT under name. Records keep
// their field order; td.Keys marks key fields by their DDS member name.
func (b *registryBuilder) witType(name string, td *TypeDef, path []string) (*typecode.TypeCode, error) {
	doc, err := b.witDoc(td.WIT, path)
	if err != nil {
		return nil, err
	}
	var found *wit.TypeDef
	for _, t := range doc.TypeDefs {
		if t.Name == nil || *t.Name != td.Type {
			continue
		}
		if found != nil {
			return nil, errors.InvalidInput(errors.PhaseConfig, path, "WIT type %q is ambiguous in %s", td.Type, td.WIT)
		}
		found = t
	}
	if found == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, path, "WIT type %q not found in %s", td.Type, td.WIT)
	}

	tc, err := typecode.FromWIT(found)
	if err != nil {
		return nil, err
	}
	if tc.Kind() != typecode.KindStruct {
		if len(td.Keys) > 0 {
			return nil, errors.InvalidInput(errors.PhaseConfig, path, "keys need a WIT record, %q is %s", td.Type, tc.Kind())
		}
		return typecode.NewAlias(name, tc)
	}

	members := tc.Members()
	for _, key := range td.Keys {
		i := slices.IndexFunc(members, func(m typecode.Member) bool { return m.Name == key })
		if i < 0 {
			return nil, errors.InvalidInput(errors.PhaseConfig, append(path, "keys"), "record %q has no field %q", td.Type, key)
		}
		members[i].Key = true
	}
	return typecode.NewStruct(name, members...)
}

func (b *registryBuilder) witDoc(file string, path []string) (*wit.Resolve, error) {
	if file == "" {
		return nil, errors.InvalidInput(errors.PhaseConfig, path, "wit type needs a WIT document")
	}
	if !filepath.IsAbs(file) && b.dir != "" {
		file = filepath.Join(b.dir, file)
	}
	if doc, ok := b.docs[file]; ok {
		return doc, nil
	}
	doc, err := wit.LoadJSON(file)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "load WIT "+file)
	}
	b.docs[file] = doc
	return doc, nil
}

func (b *registryBuilder) members(td *TypeDef, path []string) ([]typecode.Member, error) {
	members := make([]typecode.Member, 0, len(td.Members))
	for _, m := range td.Members {
		mt, err := b.parse(m.Type, append(append([]string{}, path...), m.Name))
		if err != nil {
			return nil, err
		}
		members = append(members, typecode.Member{
			Name:   m.Name,
			Type:   mt,
			Key:    m.Key,
			ID:     typecode.MemberID(m.ID),
			Labels: m.Labels,
		})
	}
	return members, nil
}

func (b *registryBuilder) parse(expr string, path []string) (*typecode.TypeCode, error) {
	if _, ok := b.defs[strings.TrimSpace(expr)]; ok {
		// Surface cycle and definition errors of the referenced type.
		return b.build(strings.TrimSpace(expr))
	}
	b.lookErr = nil
	tc, err := ParseType(expr, b.lookup)
	if err != nil {
		if b.lookErr != nil {
			return nil, b.lookErr
		}
		var e *errors.Error
		if stderrors.As(err, &e) {
			e.Path = path
		}
		return nil, err
	}
	return tc, nil
}

// ParseType parses a type expression:
//
//	short long ushort ulong longlong ulonglong float double boolean
//	char wchar octet            primitives (IDL spellings such as
//	                            "unsigned long long" also work)
//	string  string<N>           unbounded or bounded string
//	wstring wstring<N>          wide string
//	sequence<T>  sequence<T,N>  sequence, optionally bounded
//	T[N][M]                     array with one or more dimensions
//	Name                        a type resolved through named
func ParseType(expr string, named func(string) (*typecode.TypeCode, bool)) (*typecode.TypeCode, error) {
	p := &typeParser{src: expr, named: named}
	tc, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return tc, nil
}

type typeParser struct {
	named func(string) (*typecode.TypeCode, bool)
	src   string
	pos   int
}

func (p *typeParser) parseType() (*typecode.TypeCode, error) {
	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	var dims []uint32
	for p.peek('[') {
		p.pos++
		n, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		if !p.expect(']') {
			return nil, p.errorf("expected ']'")
		}
		dims = append(dims, n)
	}
	if len(dims) == 0 {
		return base, nil
	}
	return typecode.NewArray(base, dims...)
}

func (p *typeParser) parseBase() (*typecode.TypeCode, error) {
	word := p.ident()
	switch word {
	case "":
		return nil, p.errorf("expected a type")
	case "unsigned":
		switch next := p.ident(); next {
		case "short":
			return typecode.UShort, nil
		case "long":
			if p.lookIdent("long") {
				p.ident()
				return typecode.ULongLong, nil
			}
			return typecode.ULong, nil
		default:
			return nil, p.errorf("unexpected %q after unsigned", next)
		}
	case "long":
		if p.lookIdent("long") {
			p.ident()
			return typecode.LongLong, nil
		}
		if p.lookIdent("double") {
			p.ident()
			return typecode.LongDouble, nil
		}
		return typecode.Long, nil
	case "string", "wstring":
		var bound uint32
		if p.peek('<') {
			p.pos++
			n, err := p.parseNumber()
			if err != nil {
				return nil, err
			}
			if !p.expect('>') {
				return nil, p.errorf("expected '>'")
			}
			bound = n
		}
		if word == "string" {
			return typecode.NewString(bound), nil
		}
		return typecode.NewWString(bound), nil
	case "sequence":
		if !p.expect('<') {
			return nil, p.errorf("expected '<'")
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		var bound uint32
		if p.peek(',') {
			p.pos++
			if bound, err = p.parseNumber(); err != nil {
				return nil, err
			}
		}
		if !p.expect('>') {
			return nil, p.errorf("expected '>'")
		}
		return typecode.NewSequence(elem, bound)
	}

	if k, ok := primitiveNames[word]; ok {
		return typecode.Primitive(k), nil
	}
	if p.named != nil {
		if tc, ok := p.named(word); ok {
			return tc, nil
		}
	}
	return nil, p.errorf("unknown type %q", word)
}

var primitiveNames = map[string]typecode.Kind{
	"short":      typecode.KindShort,
	"ushort":     typecode.KindUShort,
	"ulong":      typecode.KindULong,
	"longlong":   typecode.KindLongLong,
	"ulonglong":  typecode.KindULongLong,
	"float":      typecode.KindFloat,
	"double":     typecode.KindDouble,
	"longdouble": typecode.KindLongDouble,
	"boolean":    typecode.KindBoolean,
	"char":       typecode.KindChar,
	"wchar":      typecode.KindWChar,
	"octet":      typecode.KindOctet,
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) peek(c byte) bool {
	p.skipSpace()
	return p.pos < len(p.src) && p.src[p.pos] == c
}

func (p *typeParser) expect(c byte) bool {
	if !p.peek(c) {
		return false
	}
	p.pos++
	return true
}

// ident reads an identifier; scoped names like Module::Type are one word.
func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			p.pos++
			continue
		}
		if c == ':' && p.pos+1 < len(p.src) && p.src[p.pos+1] == ':' {
			p.pos += 2
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) lookIdent(word string) bool {
	save := p.pos
	got := p.ident()
	p.pos = save
	return got == word
}

func (p *typeParser) parseNumber() (uint32, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.ParseUint(p.src[start:p.pos], 10, 32)
	if err != nil || n == 0 {
		return 0, p.errorf("expected a positive number")
	}
	return uint32(n), nil
}

func (p *typeParser) errorf(format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Value(p.src).
		Detail("type %q at offset %d: %s", p.src, p.pos, fmt.Sprintf(format, args...)).
		Build()
}
