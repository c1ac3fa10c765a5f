package reflection

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

var (
	ErrNilProducer          = errors.New("producer cannot be nil")
	ErrNoReturn             = errors.New("constructor must return at least one value")
	ErrTooManyReturns       = errors.New("constructor must return at most 2 values")
	ErrSecondReturnNotError = errors.New("constructor's second return value must be error")
	ErrErrorOnlyReturn      = errors.New("constructor must return a value other than error")
	ErrVariadic             = errors.New("variadic constructors are not supported")
)

// Analyzer performs reflection-based analysis of producers.
// Results only depend on the producer's type, so they are cached per type.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[reflect.Type]*ConstructorInfo
}

// ConstructorInfo contains analyzed information about a constructor function or instance.
type ConstructorInfo struct {
	Type           reflect.Type
	IsFunc         bool // False for instance producers
	Parameters     []ParameterInfo
	Result         reflect.Type // Produced type
	HasErrorReturn bool         // Returns (T, error)
}

// ParameterInfo describes a single constructor parameter.
type ParameterInfo struct {
	Index    int
	Type     reflect.Type
	IsSlice  bool
	ElemType reflect.Type // Element type if slice
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{
		cache: make(map[reflect.Type]*ConstructorInfo),
	}
}

// Analyze inspects producer, which is either a constructor function or an
// already built instance.
func (a *Analyzer) Analyze(producer any) (*ConstructorInfo, error) {
	if producer == nil {
		return nil, ErrNilProducer
	}

	val := reflect.ValueOf(producer)
	if (val.Kind() == reflect.Func || val.Kind() == reflect.Pointer) && val.IsNil() {
		return nil, ErrNilProducer
	}

	typ := val.Type()

	a.mu.RLock()
	if cached, ok := a.cache[typ]; ok {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	info := &ConstructorInfo{Type: typ}

	if typ.Kind() != reflect.Func {
		info.Result = typ
		return a.cacheAndReturn(typ, info), nil
	}

	info.IsFunc = true

	if typ.IsVariadic() {
		return nil, ErrVariadic
	}

	if err := analyzeReturns(info); err != nil {
		return nil, err
	}

	info.Parameters = make([]ParameterInfo, typ.NumIn())
	for i := range typ.NumIn() {
		paramType := typ.In(i)
		param := ParameterInfo{
			Index:   i,
			Type:    paramType,
			IsSlice: paramType.Kind() == reflect.Slice,
		}
		if param.IsSlice {
			param.ElemType = paramType.Elem()
		}
		info.Parameters[i] = param
	}

	return a.cacheAndReturn(typ, info), nil
}

func analyzeReturns(info *ConstructorInfo) error {
	fnType := info.Type

	switch fnType.NumOut() {
	case 0:
		return ErrNoReturn
	case 1:
		if fnType.Out(0) == errType {
			return ErrErrorOnlyReturn
		}
	case 2:
		if fnType.Out(1) != errType {
			return fmt.Errorf("%w, got %v", ErrSecondReturnNotError, fnType.Out(1))
		}
		if fnType.Out(0) == errType {
			return ErrErrorOnlyReturn
		}
		info.HasErrorReturn = true
	default:
		return fmt.Errorf("%w, got %d", ErrTooManyReturns, fnType.NumOut())
	}

	info.Result = fnType.Out(0)
	return nil
}

func (a *Analyzer) cacheAndReturn(key reflect.Type, info *ConstructorInfo) *ConstructorInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.cache[key]; ok {
		return existing
	}

	a.cache[key] = info
	return info
}

// Invoke calls the constructor with args and splits off the error return.
func (info *ConstructorInfo) Invoke(fn reflect.Value, args []reflect.Value) (any, error) {
	results := fn.Call(args)

	if info.HasErrorReturn {
		if errVal := results[1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
	}

	out := results[0]
	if !out.IsValid() {
		return nil, nil
	}

	switch out.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if out.IsNil() {
			return nil, nil
		}
	}

	return out.Interface(), nil
}

// CacheSize returns the number of analyzed producer types.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.cache)
}
