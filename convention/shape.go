package convention

import (
	"reflect"
	"strings"
)

// Shape is the composite identity of an instantiated generic type: the
// family it was instantiated from and its type arguments in order.
//
// For Query[FindCriterion, EntityList] declared in package app, Family is
// "app.Query" qualified by import path and Args holds the qualified names
// of FindCriterion and EntityList.
type Shape struct {
	Family string
	Args   []string
}

// IsGeneric reports whether the shape has type arguments.
func (s Shape) IsGeneric() bool {
	return len(s.Args) > 0
}

func (s Shape) String() string {
	if !s.IsGeneric() {
		return s.Family
	}
	return s.Family + "[" + strings.Join(s.Args, ",") + "]"
}

// ShapeOf splits a named type into its family and type arguments.
// Pointer types are described by their element. Unnamed types have an
// empty shape.
func ShapeOf(t reflect.Type) Shape {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return Shape{}
	}

	name := t.Name()
	family := name
	var args []string

	if open := strings.IndexByte(name, '['); open >= 0 && strings.HasSuffix(name, "]") {
		family = name[:open]
		args = splitTypeArgs(name[open+1 : len(name)-1])
	}

	if pkg := t.PkgPath(); pkg != "" {
		family = pkg + "." + family
	}

	return Shape{Family: family, Args: args}
}

// FamilyOf returns the family of any instantiation of the generic type I.
// It is the closest Go has to naming an open generic type:
//
//	convention.FamilyOf[Query[any, any]]()
func FamilyOf[I any]() string {
	return ShapeOf(reflect.TypeFor[I]()).Family
}

// splitTypeArgs splits a type argument list on top-level commas.
func splitTypeArgs(list string) []string {
	var (
		args  []string
		depth int
		start int
	)

	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, list[start:i])
				start = i + 1
			}
		}
	}

	return append(args, list[start:])
}
