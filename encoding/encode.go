// Package encoding lays fixed-size values out as packed byte sequences in
// a chosen byte order. Only integers, bools, arrays and structs of those
// are supported; fields tagged `encoding:"ignore"` are skipped.
package encoding

import (
	"errors"
	"iter"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

type handler = func(Stream, unsafe.Pointer) error

type handlerData struct {
	handler handler
	size    int
}

var ErrShortData = errors.New("short data")

var encodeProcess sync.Map

func EncodeSize(val any) int {
	typ := elemType(val)
	return getMarshalData(typ).size
}

func Encode(stream Stream, val any) error {
	typ := elemType(val)
	return getMarshalData(typ).handler(stream, reflect2.PtrOf(val))
}

// Marshal is Encode into a fresh buffer.
func Marshal(stream func(*Buffer) Stream, val any) ([]byte, error) {
	buf := make(Buffer, 0, EncodeSize(val))
	if err := Encode(stream(&buf), val); err != nil {
		return nil, err
	}
	return buf, nil
}

func elemType(val any) reflect2.Type {
	typ := reflect2.TypeOf(val)
	if typ.Kind() == reflect.Pointer {
		return typ.(reflect2.PtrType).Elem()
	}
	return typ
}

func getMarshalData(typ reflect2.Type) *handlerData {
	key := typ.RType()
	if v, ok := encodeProcess.Load(key); ok {
		return v.(*handlerData)
	}
	marshal, size := encode(typ)
	data := &handlerData{marshal, size.Size()}
	encodeProcess.Store(key, data)
	return data
}

func encode(typ reflect2.Type) (handler, structSize) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Write([]byte{*(*uint8)(ptr)})
			return err
		}, structSize{1}
	case reflect.Int16, reflect.Uint16:
		return func(stream Stream, ptr unsafe.Pointer) error {
			var b [2]byte
			stream.ByteOrder().PutUint16(b[:], *(*uint16)(ptr))
			_, err := stream.Write(b[:])
			return err
		}, structSize{2}
	case reflect.Int32, reflect.Uint32:
		return func(stream Stream, ptr unsafe.Pointer) error {
			var b [4]byte
			stream.ByteOrder().PutUint32(b[:], *(*uint32)(ptr))
			_, err := stream.Write(b[:])
			return err
		}, structSize{4}
	case reflect.Int64, reflect.Uint64:
		return func(stream Stream, ptr unsafe.Pointer) error {
			var b [8]byte
			stream.ByteOrder().PutUint64(b[:], *(*uint64)(ptr))
			_, err := stream.Write(b[:])
			return err
		}, structSize{8}
	case reflect.Array:
		return encodeArray(typ.(reflect2.ArrayType))
	case reflect.Struct:
		return encodeStruct(typ.(reflect2.StructType))
	}
	panic("Unsupported Type")
}

func encodeArray(typ reflect2.ArrayType) (handler, structSize) {
	marshal, elemSize := encode(typ.Elem())
	count := typ.Len()
	size := make(structSize, 0, count)
	for i := 0; i < count; i++ {
		size = size.Add(elemSize)
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			if err := marshal(stream, typ.UnsafeGetIndex(ptr, i)); err != nil {
				return err
			}
		}
		return nil
	}, size
}

func encodeStruct(typ reflect2.StructType) (handler, structSize) {
	var size structSize
	var fields []reflect2.StructField
	var handlers []handler
	for field := range rangeField(typ) {
		marshal, fieldSize := encode(field.Type())
		size = size.Add(fieldSize)
		fields = append(fields, field)
		handlers = append(handlers, marshal)
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

func rangeField(typ reflect2.StructType) iter.Seq[reflect2.StructField] {
	return func(yield func(reflect2.StructField) bool) {
		count := typ.NumField()
		for i := 0; i < count; i++ {
			field := typ.Field(i)
			if field.Tag().Get("encoding") == "ignore" {
				continue
			}
			if !yield(field) {
				break
			}
		}
	}
}
