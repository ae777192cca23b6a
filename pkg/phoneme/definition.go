package phoneme

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Definition is the static description an Inventory is built from. It is
// normally the built-in table but may be loaded from YAML at startup.
type Definition struct {
	Vowels     []string `yaml:"vowels"`
	Diphthongs []string `yaml:"diphthongs"`
	Consonants []string `yaml:"consonants"`

	// Similar lists, per symbol, the symbols perceived as close to it. It
	// does not need to be symmetric.
	Similar map[string][]string `yaml:"similar"`

	// TieBars maps combining tie-bar affricate spellings to plain ones.
	TieBars map[string]string `yaml:"tie_bars"`

	// Aliases maps alternative spellings emitted by recognizers to
	// inventory symbols.
	Aliases map[string]string `yaml:"aliases"`

	// Reconstruct lists the symbols that are put back together when a
	// recognizer emits their parts as separate adjacent tokens. When empty,
	// the diphthongs are used.
	Reconstruct []string `yaml:"reconstruct"`
}

// DefaultDefinition returns the built-in English inventory definition.
func DefaultDefinition() Definition {
	return Definition{
		Vowels:     []string{"i", "ɪ", "ɛ", "æ", "ə", "ɚ", "ʌ", "ɑ", "ɔ", "ʊ", "u"},
		Diphthongs: []string{"eɪ", "aɪ", "ɔɪ", "aʊ", "oʊ"},
		Consonants: []string{
			"p", "b", "t", "d", "k", "g", "f", "v", "θ", "ð", "s", "z",
			"ʃ", "ʒ", "tʃ", "dʒ", "h", "m", "n", "ŋ", "l", "r", "j", "w",
		},
		Similar: map[string][]string{
			"i":  {"ɪ", "j"},
			"ɪ":  {"ɛ"},
			"ɛ":  {"æ"},
			"u":  {"ʊ", "w"},
			"p":  {"b"},
			"t":  {"d"},
			"k":  {"g"},
			"f":  {"v"},
			"θ":  {"ð"},
			"s":  {"z"},
			"ʃ":  {"ʒ"},
			"tʃ": {"dʒ"},
			"n":  {"m", "ŋ"},
			"l":  {"r"},
			"ə":  {"ʌ", "ɚ"},
			"ɑ":  {"ɔ", "ʌ"},
			"ɔ":  {"oʊ"},
			"oʊ": {"ʊ"},
			"eɪ": {"ɛ", "ɪ"},
			"aɪ": {"ɪ", "ɑ"},
			"ɔɪ": {"ɔ", "ɪ"},
			"aʊ": {"ʊ", "ɑ"},
		},
		TieBars: map[string]string{
			"d͡ʒ": "dʒ",
			"t͡ʃ": "tʃ",
			"t͡s": "ts",
			"d͡z": "dz",
		},
		Aliases: map[string]string{
			"ɡ": "g",
			"ɹ": "r",
			"ɝ": "ɚ",
			"ʤ": "dʒ",
			"ʧ": "tʃ",
		},
		Reconstruct: []string{"eɪ", "aɪ", "ɔɪ", "aʊ", "oʊ", "dʒ", "tʃ"},
	}
}

// Validate reports every problem with d at once.
func (d Definition) Validate() error {
	var errs []error
	seen := make(map[string]string)
	check := func(class string, texts []string) {
		for _, t := range texts {
			switch n := len([]rune(t)); {
			case t == "":
				errs = append(errs, fmt.Errorf("%w: empty %s symbol", ErrInvalidDefinition, class))
				continue
			case n > 3:
				errs = append(errs, fmt.Errorf("%w: %s symbol %q longer than 3 characters", ErrInvalidDefinition, class, t))
			}
			if prev, ok := seen[t]; ok {
				errs = append(errs, fmt.Errorf("%w: symbol %q declared as %s and %s", ErrInvalidDefinition, t, prev, class))
				continue
			}
			seen[t] = class
		}
	}
	check("vowel", d.Vowels)
	check("diphthong", d.Diphthongs)
	check("consonant", d.Consonants)

	if len(seen) == 0 {
		errs = append(errs, fmt.Errorf("%w: no symbols", ErrInvalidDefinition))
	}

	for a, bs := range d.Similar {
		if _, ok := seen[a]; !ok {
			errs = append(errs, fmt.Errorf("%w: similar: %q is not a registered symbol", ErrInvalidDefinition, a))
		}
		for _, b := range bs {
			if _, ok := seen[b]; !ok {
				errs = append(errs, fmt.Errorf("%w: similar[%q]: %q is not a registered symbol", ErrInvalidDefinition, a, b))
			}
			if a == b {
				errs = append(errs, fmt.Errorf("%w: similar[%q]: a symbol cannot be similar to itself", ErrInvalidDefinition, a))
			}
		}
	}

	for _, r := range d.Reconstruct {
		switch _, ok := seen[r]; {
		case !ok:
			errs = append(errs, fmt.Errorf("%w: reconstruct: %q is not a registered symbol", ErrInvalidDefinition, r))
		case utf8.RuneCountInString(r) < 2:
			errs = append(errs, fmt.Errorf("%w: reconstruct: %q has no parts to join", ErrInvalidDefinition, r))
		}
	}

	for name, m := range map[string]map[string]string{"tie_bars": d.TieBars, "aliases": d.Aliases} {
		for from, to := range m {
			if from == "" || to == "" {
				errs = append(errs, fmt.Errorf("%w: %s: empty substitution %q -> %q", ErrInvalidDefinition, name, from, to))
			}
		}
	}

	return errors.Join(errs...)
}

// LoadDefinition decodes a YAML definition from r. Unknown keys are rejected.
func LoadDefinition(r io.Reader) (Definition, error) {
	var d Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Definition{}, fmt.Errorf("phoneme: decode definition: %w", err)
	}
	return d, nil
}

// LoadInventory reads a YAML definition from path and builds an Inventory.
func LoadInventory(path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("phoneme: open definition: %w", err)
	}
	defer f.Close()

	def, err := LoadDefinition(f)
	if err != nil {
		return nil, err
	}
	return NewInventory(def)
}
