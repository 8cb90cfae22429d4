package data

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// tf.Example wire encoding, hand-assembled with protowire so the codec
// does not depend on generated TensorFlow protos. Only bytes_list
// features are produced or consumed:
//
//	Example  { Features features = 1 }
//	Features { map<string, Feature> feature = 1 }
//	Feature  { BytesList bytes_list = 1 }
//	BytesList{ repeated bytes value = 1 }

const (
	labelFeature = "label"
	textAFeature = "text_a"
	textBFeature = "text_b"
)

// MarshalExample encodes an example as a serialized tf.Example proto.
func MarshalExample(ex Example) ([]byte, error) {
	if len(ex.Texts) == 0 || len(ex.Texts) > 2 {
		return nil, fmt.Errorf("data: expected one or two text fields, got %d", len(ex.Texts))
	}

	features := map[string]string{
		labelFeature: ex.Label,
		textAFeature: ex.Texts[0],
	}
	if len(ex.Texts) == 2 {
		features[textBFeature] = ex.Texts[1]
	}

	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	var featuresMsg []byte
	for _, name := range names {
		featuresMsg = protowire.AppendTag(featuresMsg, 1, protowire.BytesType)
		featuresMsg = protowire.AppendBytes(featuresMsg, mapEntry(name, features[name]))
	}

	var out []byte
	out = protowire.AppendTag(out, 1, protowire.BytesType)
	out = protowire.AppendBytes(out, featuresMsg)
	return out, nil
}

func mapEntry(key, value string) []byte {
	// BytesList{ value: [value] }
	var bytesList []byte
	bytesList = protowire.AppendTag(bytesList, 1, protowire.BytesType)
	bytesList = protowire.AppendBytes(bytesList, []byte(value))

	// Feature{ bytes_list: ... }
	var feature []byte
	feature = protowire.AppendTag(feature, 1, protowire.BytesType)
	feature = protowire.AppendBytes(feature, bytesList)

	var entry []byte
	entry = protowire.AppendTag(entry, 1, protowire.BytesType)
	entry = protowire.AppendBytes(entry, []byte(key))
	entry = protowire.AppendTag(entry, 2, protowire.BytesType)
	entry = protowire.AppendBytes(entry, feature)
	return entry
}

// UnmarshalExample decodes a serialized tf.Example back into an Example.
// Features other than label/text_a/text_b are ignored.
func UnmarshalExample(b []byte) (Example, error) {
	features, err := parseFeatures(b)
	if err != nil {
		return Example{}, err
	}

	label, ok := features[labelFeature]
	if !ok {
		return Example{}, fmt.Errorf("data: tf.Example missing %q feature", labelFeature)
	}
	textA, ok := features[textAFeature]
	if !ok {
		return Example{}, fmt.Errorf("data: tf.Example missing %q feature", textAFeature)
	}

	ex := Example{Label: label, Texts: []string{textA}}
	if textB, ok := features[textBFeature]; ok {
		ex.Texts = append(ex.Texts, textB)
	}
	return ex, nil
}

func parseFeatures(b []byte) (map[string]string, error) {
	out := make(map[string]string)

	featuresMsg, err := messageField(b, 1)
	if err != nil {
		return nil, fmt.Errorf("data: parse tf.Example: %w", err)
	}

	for len(featuresMsg) > 0 {
		num, typ, n := protowire.ConsumeTag(featuresMsg)
		if n < 0 {
			return nil, fmt.Errorf("data: parse tf.Features: %w", protowire.ParseError(n))
		}
		featuresMsg = featuresMsg[n:]
		if typ != protowire.BytesType {
			m := protowire.ConsumeFieldValue(num, typ, featuresMsg)
			if m < 0 {
				return nil, fmt.Errorf("data: parse tf.Features: %w", protowire.ParseError(m))
			}
			featuresMsg = featuresMsg[m:]
			continue
		}
		entry, n := protowire.ConsumeBytes(featuresMsg)
		if n < 0 {
			return nil, fmt.Errorf("data: parse tf.Features entry: %w", protowire.ParseError(n))
		}
		featuresMsg = featuresMsg[n:]
		if num != 1 {
			continue
		}

		key, feature, err := parseMapEntry(entry)
		if err != nil {
			return nil, err
		}
		value, err := parseBytesFeature(feature)
		if err != nil {
			// Non-bytes features (int64/float lists) are skipped.
			continue
		}
		out[key] = value
	}
	return out, nil
}

func parseMapEntry(b []byte) (key string, feature []byte, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, fmt.Errorf("data: parse feature map entry: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return "", nil, fmt.Errorf("data: parse feature map entry: %w", protowire.ParseError(m))
			}
			b = b[m:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return "", nil, fmt.Errorf("data: parse feature map entry: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case 1:
			key = string(v)
		case 2:
			feature = v
		}
	}
	return key, feature, nil
}

func parseBytesFeature(feature []byte) (string, error) {
	bytesList, err := messageField(feature, 1)
	if err != nil {
		return "", err
	}
	value, err := messageField(bytesList, 1)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// messageField returns the first length-delimited field with the given
// number in a message.
func messageField(b []byte, field protowire.Number) ([]byte, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if num == field && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			return v, nil
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil, fmt.Errorf("missing field %d", field)
}
