// Package wire is the portable encoding of assembled artifacts: canonical
// CBOR, so equal artifacts always encode to equal bytes and the SHA-256
// of the encoding can serve as a content address.
package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/stackasm/pkg/asm"
	"github.com/chazu/stackasm/pkg/bytecode"
)

// Version is the envelope format written by Marshal.
const Version = 1

// ErrVersion is returned for envelopes written by an unknown format.
var ErrVersion = errors.New("wire: unsupported envelope version")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// Envelope is the serialized form of an artifact. The local count is not
// stored; it is the length of Locals.
type Envelope struct {
	Version  int      `cbor:"v"`
	Name     string   `cbor:"name"`
	Width    string   `cbor:"width"`
	Code     []byte   `cbor:"code,omitempty"`
	Consts   []any    `cbor:"consts,omitempty"`
	Names    []string `cbor:"names,omitempty"`
	Locals   []string `cbor:"locals,omitempty"`
	Params   int      `cbor:"params"`
	MaxStack int      `cbor:"maxStack"`
	Defaults []any    `cbor:"defaults,omitempty"`
}

// Marshal encodes an artifact.
func Marshal(a *asm.Artifact) ([]byte, error) {
	if a == nil {
		return nil, errors.New("wire: marshal nil artifact")
	}
	env := Envelope{
		Version:  Version,
		Name:     a.Name,
		Width:    a.Width.String(),
		Code:     a.Code,
		Consts:   a.Consts,
		Names:    a.Names,
		Locals:   a.Locals,
		Params:   a.ParamCount,
		MaxStack: a.MaxStack,
		Defaults: a.Defaults,
	}
	data, err := encMode.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %s: %w", a.Name, err)
	}
	return data, nil
}

// Unmarshal decodes an artifact. Integer constants come back as int64.
func Unmarshal(data []byte) (*asm.Artifact, error) {
	var env Envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: unmarshal artifact: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w %d", ErrVersion, env.Version)
	}
	w, err := bytecode.ParseWidth(env.Width)
	if err != nil {
		return nil, fmt.Errorf("wire: unmarshal %s: %w", env.Name, err)
	}

	return &asm.Artifact{
		Name:       env.Name,
		Width:      w,
		Code:       env.Code,
		Consts:     normalizeAll(env.Consts),
		Names:      env.Names,
		Locals:     env.Locals,
		ParamCount: env.Params,
		LocalCount: len(env.Locals),
		MaxStack:   env.MaxStack,
		Defaults:   normalizeAll(env.Defaults),
	}, nil
}

// Seal encodes an artifact and returns the encoding together with its
// hex digest. Every content address in the module is computed here.
func Seal(a *asm.Artifact) (data []byte, digest string, err error) {
	data, err = Marshal(a)
	if err != nil {
		return nil, "", err
	}
	return data, SumHex(data), nil
}

// SumHex returns the lowercase hex SHA-256 of an encoded artifact.
func SumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Digest returns the SHA-256 of the artifact's canonical encoding.
func Digest(a *asm.Artifact) ([32]byte, error) {
	data, err := Marshal(a)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// DigestHex is Digest rendered as lowercase hex.
func DigestHex(a *asm.Artifact) (string, error) {
	_, digest, err := Seal(a)
	return digest, err
}

func normalizeAll(vs []any) []any {
	for i, v := range vs {
		vs[i] = normalize(v)
	}
	return vs
}

// normalize maps decoded CBOR values onto the value types the loader
// works with.
func normalize(v any) any {
	switch x := v.(type) {
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
	case []any:
		return normalizeAll(x)
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
	}
	return v
}
