package mongoclient

import (
	"errors"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
)

var (
	ErrNotStruct = errors.New("filter is not a struct")
)

// FilterOf builds an equality filter from the bson tags of a struct. Zero
// fields are left out. A set pointer is dereferenced and kept even when it
// points at a zero value.
func FilterOf(v interface{}) (bson.M, error) {
	val := reflect.Indirect(reflect.ValueOf(v))
	if val.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}

	typ := val.Type()
	m := bson.M{}
	for i := 0; i < val.NumField(); i++ {
		sf := typ.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		tag, err := bsoncodec.DefaultStructTagParser(sf)
		if err != nil {
			return nil, err
		}

		fv := val.Field(i)
		switch {
		case tag.Skip, fv.IsZero():
		case fv.Kind() == reflect.Ptr:
			m[tag.Name] = fv.Elem().Interface()
		default:
			m[tag.Name] = fv.Interface()
		}
	}
	return m, nil
}
