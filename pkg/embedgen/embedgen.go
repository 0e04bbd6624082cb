// Package embedgen generates Go source that embeds assembled artifacts,
// so a program can ship routines without reading them at run time.
package embedgen

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/stackasm/pkg/asm"
	"github.com/chazu/stackasm/pkg/wire"
)

const (
	vmPath   = "github.com/chazu/stackasm/pkg/vm"
	wirePath = "github.com/chazu/stackasm/pkg/wire"
)

// Embed is one artifact to embed. Ident defaults to the artifact name.
type Embed struct {
	Ident    string
	Artifact *asm.Artifact
}

// Generate renders a Go file in package pkg. For each artifact it emits
// a digest constant, the hex-encoded wire bytes and a Load function.
func Generate(pkg string, embeds []Embed) ([]byte, error) {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by stackasm embed. DO NOT EDIT.")

	seen := make(map[string]bool)
	for _, e := range embeds {
		if e.Artifact == nil {
			return nil, fmt.Errorf("embedgen: nil artifact")
		}
		ident := e.Ident
		if ident == "" {
			ident = e.Artifact.Name
		}
		ident = GoName(ident)
		if ident == "" {
			return nil, fmt.Errorf("embedgen: artifact %q has no usable Go name", e.Artifact.Name)
		}
		if seen[ident] {
			return nil, fmt.Errorf("embedgen: duplicate identifier %s", ident)
		}
		seen[ident] = true

		if err := generateOne(f, ident, e.Artifact); err != nil {
			return nil, err
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		return nil, fmt.Errorf("embedgen: render: %w", err)
	}
	return buf.Bytes(), nil
}

func generateOne(f *jen.File, ident string, a *asm.Artifact) error {
	data, digest, err := wire.Seal(a)
	if err != nil {
		return err
	}

	lower := lowerFirst(ident)
	hexVar := lower + "Wire"

	f.Commentf("%sDigest is the SHA-256 of the embedded %s artifact.", ident, a.Name)
	f.Const().Id(ident + "Digest").Op("=").Lit(digest)
	f.Line()

	for _, line := range strings.Split(strings.TrimRight(a.Disassemble(), "\n"), "\n") {
		f.Comment(line)
	}
	f.Var().Id(hexVar).Op("=").Lit(hex.EncodeToString(data))
	f.Line()

	f.Commentf("Load%s decodes the embedded %s artifact and loads it with globals.", ident, a.Name)
	f.Func().Id("Load"+ident).Params(
		jen.Id("globals").Qual(vmPath, "Globals"),
	).Params(jen.Op("*").Qual(vmPath, "Routine"), jen.Error()).Block(
		jen.List(jen.Id("data"), jen.Err()).Op(":=").Qual("encoding/hex", "DecodeString").Call(jen.Id(hexVar)),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		),
		jen.List(jen.Id("a"), jen.Err()).Op(":=").Qual(wirePath, "Unmarshal").Call(jen.Id("data")),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		),
		jen.Return(jen.Qual(vmPath, "Load").Call(jen.Id("a"), jen.Id("globals"))),
	)
	f.Line()
	return nil
}

// GoName turns an artifact name into an exported Go identifier:
// "bit-length_of" becomes "BitLengthOf".
func GoName(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || (unicode.IsDigit(r) && sb.Len() > 0):
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			sb.WriteRune(r)
		case unicode.IsDigit(r):
			// A leading digit cannot start an identifier.
		default:
			upper = true
		}
	}
	return sb.String()
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
