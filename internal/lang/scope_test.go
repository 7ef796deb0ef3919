// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scopes(lines []Line) []Scope {
	out := make([]Scope, len(lines))
	for i, l := range lines {
		out[i] = l.Scope
	}
	return out
}

func TestClassifyRust(t *testing.T) {
	lines := rustGrammar.Classify([]string{
		"use std::collections::HashMap;",
		"#[derive(Debug)]",
		"struct A {",
		"    m: HashMap<String, i32>,",
		"}",
		"let a = A { m: HashMap::new() };",
		"fn main() {",
		"    let b = 1;",
		"    if b > 0 {",
		"        b",
		"    }",
		"}",
	})
	assert.Equal(t, []Scope{Import, Decl, Decl, Decl, Decl, Body, Entry, Body, Body, Body, Body, Entry}, scopes(lines))
	assert.True(t, lines[5].Top)
	assert.True(t, lines[7].Top)
	assert.False(t, lines[9].Top)
}

func TestClassifyEntryTrailingBrace(t *testing.T) {
	lines := goGrammar.Classify([]string{"func main() {", "\tx := 1", "\tfmt.Println(x) }"})
	assert.Equal(t, []Scope{Entry, Body, Body}, scopes(lines))
	assert.Equal(t, "\tfmt.Println(x) ", lines[2].Text)
}

func TestClassifyIndentedDeclIsBody(t *testing.T) {
	lines := goGrammar.Classify([]string{"\tfunc() {}()", "type T int"})
	assert.Equal(t, []Scope{Body, Decl}, scopes(lines))
}

func TestBraceDelta(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int
	}{
		{"fn f() {", 1},
		{`let s = "{";`, 0},
		{"let c = '{';", 0},
		{`let c = '\n'; {`, 1},
		{"fn f<'a>(x: &'a str) {", 1},
		{"} // {", -1},
		{"x := `{`", 0},
		{"vec![1, 2, [3]]", 0},
		{`s := "\"{"`, 0},
	} {
		assert.Equal(t, tc.want, braceDelta(tc.in), tc.in)
	}
}

func TestPrinterWrap(t *testing.T) {
	for _, tc := range []struct {
		pr   printer
		line string
		want string
		ok   bool
	}{
		{rustPrint, "x + 1", `println!("{:?}", x + 1);`, true},
		{rustPrint, "return x;", "return x;", false},
		{rustPrint, "!foo()", `println!("{:#?}", foo());`, true},
		{rustPrint, "x != y", `println!("{:?}", x != y);`, true},
		{rustPrint, "a = 2", "a = 2", false},
		{goPrint, "x++", "x++", false},
		{goPrint, "v := f()", "v := f()", false},
		{goPrint, "len(s)", "len(s)", false},
		{pythonPrint, "  y", "  y", false},
		{pythonPrint, "x == 1", "print(x == 1)", true},
		{pythonPrint, "x += 1", "x += 1", false},
		{mojoPrint, "a b", "a b", false},
		{mojoPrint, "a", "print(a)", true},
	} {
		got, _, ok := tc.pr.wrap(tc.line)
		assert.Equal(t, tc.ok, ok, tc.line)
		assert.Equal(t, tc.want, got, tc.line)
	}
}
