// Package binschema is a declarative binary-format codec. A record layout
// is an ordered list of named, typed fields; the engine parses raw byte
// streams into records and serializes records back to bytes, preserving
// bit- and byte-exact layout.
//
// Fields compose: bytes and strings with lengths, terminators and padding;
// bounded integers, floats and variable-length quantities; sub-byte bit
// runs; nested records; arrays by count or by byte region; conditionals;
// switches; enumerations. Field attributes such as a length or a switch key
// may be literals, references to sibling fields by name, callables, or
// compiled expressions, all resolved against the shared per-record context.
//
// Declaring a length or count as a sibling reference makes the sibling
// self-maintaining on write:
//
//	schema, _ := binschema.New("entry", []binschema.FieldDef{
//		{Name: "len", Field: binschema.UInt8()},
//		{Name: "val", Field: &binschema.BytesField{Length: binschema.Ref("len")}},
//	})
//	rec, _ := schema.Record(map[string]any{"val": []byte("123456")})
//	out, _ := schema.Marshal(context.Background(), rec) // 06 31 32 33 34 35 36
//
// Schemas can also be loaded from YAML documents with FromYAML.
package binschema
