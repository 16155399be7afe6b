package relay

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/url"
)

// Kind indica cómo se pudo decodificar un body.
type Kind int

const (
	// KindUnknown: content-type no reconocido o body inválido; se reenvía tal cual.
	KindUnknown Kind = iota
	KindJSON
	KindForm
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindForm:
		return "form"
	default:
		return "unknown"
	}
}

// Body es el resultado etiquetado de decodificar un POST.
// Raw siempre conserva los bytes originales.
type Body struct {
	Kind Kind
	Raw  []byte

	// malformed: el media type es JSON o form pero los bytes no decodifican.
	malformed bool
	obj       map[string]any
	form      url.Values
}

// Malformed reporta si el content-type era soportado y el body no decodificó.
// Esos bodies son KindUnknown y se reenvían tal cual como cualquier otro.
func (b Body) Malformed() bool { return b.malformed }

// DecodeBody decide el Kind por el media type, nunca por el contenido.
func DecodeBody(contentType string, raw []byte) Body {
	b := Body{Kind: KindUnknown, Raw: raw}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return b
	}
	switch mt {
	case "application/json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil || obj == nil {
			b.malformed = true
			return b
		}
		b.Kind, b.obj = KindJSON, obj
	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			b.malformed = true
			return b
		}
		b.Kind, b.form = KindForm, form
	}
	return b
}

// Get lee un campo string. Vacío si no existe o el Kind es desconocido.
func (b Body) Get(field string) string {
	switch b.Kind {
	case KindJSON:
		s, _ := b.obj[field].(string)
		return s
	case KindForm:
		return b.form.Get(field)
	}
	return ""
}

// replace sustituye campos string cuyo valor coincide exactamente con from.
// Retorna el body re-codificado y si hubo cambios.
func (b Body) replace(subs []substitution) ([]byte, bool, error) {
	switch b.Kind {
	case KindJSON:
		obj := make(map[string]any, len(b.obj))
		for k, v := range b.obj {
			obj[k] = v
		}
		changed := false
		for _, s := range subs {
			if cur, ok := obj[s.field].(string); ok && cur == s.from {
				obj[s.field] = s.to
				changed = true
			}
		}
		if !changed {
			return b.Raw, false, nil
		}
		out, err := json.Marshal(obj)
		return out, true, err

	case KindForm:
		form := make(url.Values, len(b.form))
		for k, v := range b.form {
			form[k] = append([]string(nil), v...)
		}
		changed := false
		for _, s := range subs {
			if vals, ok := form[s.field]; ok && len(vals) > 0 && vals[0] == s.from {
				form.Set(s.field, s.to)
				changed = true
			}
		}
		if !changed {
			return b.Raw, false, nil
		}
		return []byte(form.Encode()), true, nil
	}
	return b.Raw, false, nil
}

type substitution struct {
	field    string
	from, to string
}
