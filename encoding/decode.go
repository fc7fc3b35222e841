package encoding

import (
	"errors"
	"io"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

var (
	ErrNotPointer = errors.New("decode target is not a pointer")

	decodeProcess sync.Map
)

func DecodeSize(val any) int {
	return getUnmarshalData(elemType(val)).size
}

func Decode(stream Stream, val any) error {
	typ := reflect2.TypeOf(val)
	if typ.Kind() != reflect.Pointer || reflect2.IsNil(val) {
		return ErrNotPointer
	}
	return getUnmarshalData(elemType(val)).handler(stream, reflect2.PtrOf(val))
}

// Unmarshal decodes data into val and requires data to be exactly the
// encoded size.
func Unmarshal(stream func(*Buffer) Stream, data []byte, val any) error {
	if len(data) != DecodeSize(val) {
		return ErrShortData
	}
	buf := Buffer(data)
	return Decode(stream(&buf), val)
}

func getUnmarshalData(typ reflect2.Type) *handlerData {
	key := typ.RType()
	if v, ok := decodeProcess.Load(key); ok {
		return v.(*handlerData)
	}
	unmarshal, size := decode(typ)
	data := &handlerData{unmarshal, size.Size()}
	decodeProcess.Store(key, data)
	return data
}

func readFull(stream Stream, b []byte) error {
	n, err := stream.Read(b)
	if err == nil && n < len(b) {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func decode(typ reflect2.Type) (handler, structSize) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return func(stream Stream, ptr unsafe.Pointer) error {
			return readFull(stream, unsafe.Slice((*byte)(ptr), 1))
		}, structSize{1}
	case reflect.Int16, reflect.Uint16:
		return func(stream Stream, ptr unsafe.Pointer) error {
			var b [2]byte
			if err := readFull(stream, b[:]); err != nil {
				return err
			}
			*(*uint16)(ptr) = stream.ByteOrder().Uint16(b[:])
			return nil
		}, structSize{2}
	case reflect.Int32, reflect.Uint32:
		return func(stream Stream, ptr unsafe.Pointer) error {
			var b [4]byte
			if err := readFull(stream, b[:]); err != nil {
				return err
			}
			*(*uint32)(ptr) = stream.ByteOrder().Uint32(b[:])
			return nil
		}, structSize{4}
	case reflect.Int64, reflect.Uint64:
		return func(stream Stream, ptr unsafe.Pointer) error {
			var b [8]byte
			if err := readFull(stream, b[:]); err != nil {
				return err
			}
			*(*uint64)(ptr) = stream.ByteOrder().Uint64(b[:])
			return nil
		}, structSize{8}
	case reflect.Array:
		return decodeArray(typ.(reflect2.ArrayType))
	case reflect.Struct:
		return decodeStruct(typ.(reflect2.StructType))
	}
	panic("Unsupported Type")
}

func decodeArray(typ reflect2.ArrayType) (handler, structSize) {
	unmarshal, elemSize := decode(typ.Elem())
	count := typ.Len()
	size := make(structSize, 0, count)
	for i := 0; i < count; i++ {
		size = size.Add(elemSize)
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			if err := unmarshal(stream, typ.UnsafeGetIndex(ptr, i)); err != nil {
				return err
			}
		}
		return nil
	}, size
}

func decodeStruct(typ reflect2.StructType) (handler, structSize) {
	var size structSize
	var fields []reflect2.StructField
	var handlers []handler
	for field := range rangeField(typ) {
		unmarshal, fieldSize := decode(field.Type())
		size = size.Add(fieldSize)
		fields = append(fields, field)
		handlers = append(handlers, unmarshal)
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i, field := range fields {
			if err := handlers[i](stream, field.UnsafeGet(ptr)); err != nil {
				return err
			}
		}
		return nil
	}, size
}
