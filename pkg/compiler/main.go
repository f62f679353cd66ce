// Package compiler provides the lexer, parser and LLVM IR generator for the
// kitty language.
//
// Pipeline: kitty source → Lex → Parse → Generate → *ir.Module
package compiler
