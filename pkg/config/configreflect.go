package config

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
)

// ConfigureFindFieldByName locates the field of obj (a pointer to a struct)
// whose tagName-tagged value equals cfgname, matching on the Go field name as
// a case-insensitive fallback. Unexported fields are matched too. Returns the
// zero Value if no field matches.
func ConfigureFindFieldByName(obj interface{}, cfgname, tagName string) reflect.Value {
	v := reflect.ValueOf(obj).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag := f.Tag.Get(tagName); tag == cfgname {
			return v.Field(i)
		}
	}
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); strings.EqualFold(f.Name, cfgname) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

// ConfigureList writes one line per field of obj to w, in "name = value"
// form, keyed by each field's tagName tag.
func ConfigureList(w io.Writer, obj interface{}, tagName string) {
	v := reflect.ValueOf(obj).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get(tagName)
		if name == "" {
			name = f.Name
		}
		fmt.Fprintf(w, "%s = %v\n", name, v.Field(i).Interface())
	}
}

// ConfigureListByName renders a single field's current value as "name = value".
func ConfigureListByName(obj interface{}, cfgname, tagName string) string {
	field := ConfigureFindFieldByName(obj, cfgname, tagName)
	if !field.IsValid() {
		return fmt.Sprintf("%s is not a configuration parameter", cfgname)
	}
	return fmt.Sprintf("%s = %v", cfgname, field)
}

// ConfigureSetSimple parses value according to field's kind (bool or int)
// and assigns it, the same constrained set of types the "config" request
// exposes (spec.md's supplemented config request only ever sets scalars).
func ConfigureSetSimple(value string, cfgname string, field reflect.Value) error {
	switch field.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parameter %q must be true or false: %v", cfgname, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parameter %q must be an integer: %v", cfgname, err)
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("parameter %q has an unsupported type", cfgname)
	}
	return nil
}
