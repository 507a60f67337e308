// Package sigmatch names functions in a disassembled program by matching
// byte signatures against its memory.
//
// # Signatures
//
// A signature pairs a function name with a byte pattern written as
// whitespace-separated tokens. Each token is two hex digits or a wildcard
// ("?" or "??") that matches any byte:
//
//	"Alpha": "55 48 89 E5 ?? ?? 48 83 EC"
//
// Signature files are JSON or YAML objects. Use [LoadSignatures] to read a
// file or [ParseSignatures] for raw bytes. Entries keep their file order,
// which decides precedence when two signatures match the same function.
//
// # Scanning
//
// A [Scanner] runs over a [Database]: a host that exposes memory segments,
// function boundaries and a symbol table. Every occurrence of every pattern
// is located; an occurrence is accepted only when it sits exactly on a
// function start. The function is then renamed after the signature, with a
// "_N" suffix when the name is already in use. Each function is renamed at
// most once per scan and the earliest signature wins.
//
// Scans are cancelled through their context. Renames applied before
// cancellation are kept and reported in the [ScanResult].
package sigmatch
