package renderkit

// Metadata keys with meaning to the resolver. Everything else passes
// through to the converter untouched.
const (
	MetaFormat  = "format"  // per-format configuration mapping
	MetaFormats = "formats" // list restricting permissible format names
	MetaTheme   = "theme"   // HTML theme, subject to project precedence
	MetaServer  = "server"  // interactive server declaration
	MetaLang    = "lang"    // date locale tag
	MetaDate    = "date"    // normalized at resolve time
)

// Metadata holds user-facing document options as a free-form mapping.
type Metadata map[string]any

// Clone returns a deep copy. Nested maps and slices are copied so a layer
// can be mutated during merging without bleeding into its source.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Metadata:
		return val.Clone()
	case map[string]any:
		return Metadata(val).Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// mergeMetadata combines two metadata layers with over taking precedence.
// Mappings merge recursively; scalars and lists are replaced wholesale.
// Neither argument is mutated.
func mergeMetadata(base, over Metadata) Metadata {
	if base == nil {
		return over.Clone()
	}
	out := base.Clone()
	for k, v := range over {
		bv, ok := out[k]
		if !ok {
			out[k] = cloneValue(v)
			continue
		}
		bm, bIsMap := asMetadata(bv)
		om, oIsMap := asMetadata(v)
		if bIsMap && oIsMap {
			out[k] = mergeMetadata(bm, om)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func asMetadata(v any) (Metadata, bool) {
	switch val := v.(type) {
	case Metadata:
		return val, true
	case map[string]any:
		return Metadata(val), true
	default:
		return nil, false
	}
}

// SubMap returns the mapping stored under key, or nil.
func (m Metadata) SubMap(key string) Metadata {
	sub, _ := asMetadata(m[key])
	return sub
}

// String returns the string stored under key.
func (m Metadata) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// Bool returns the bool stored under key.
func (m Metadata) Bool(key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}

// StringList coerces the value under key into a list of strings: a scalar
// becomes a single-element list, non-string elements are dropped.
func (m Metadata) StringList(key string) []string {
	return toStringList(m[key])
}

func toStringList(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return nil
	}
}
