package config

// SecretStringValue replaces secrets wherever they are printed.
const SecretStringValue = "<secret>"

// SecretString holds a value which must not show up in logs, reports or
// dumped configuration. Value returns the real thing.
type SecretString string

func (s SecretString) Value() string {
	return string(s)
}

func (s SecretString) String() string {
	if len(s) == 0 {
		return ""
	}
	return SecretStringValue
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte(`"` + SecretStringValue + `"`), nil
}

func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return SecretStringValue, nil
}
