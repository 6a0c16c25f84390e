/*
 * rviss - Convert binary values to hex strings.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package hex formats register- and memory-dump values for the
// monitor, without pulling in fmt's reflection-based formatting for
// what is always a fixed-width hex digit string.
package hex

import "strings"

var hexMap = "0123456789abcdef"

// FormatQuad appends each of words as a zero-padded 16-digit hex
// quadword, separated by spaces.
func FormatQuad(str *strings.Builder, words []uint64) {
	for _, w := range words {
		shift := 60
		for range 16 {
			str.WriteByte(hexMap[(w>>uint(shift))&0xf])
			shift -= 4
		}
		str.WriteByte(' ')
	}
}

// FormatWord appends each of words as a zero-padded 8-digit hex word,
// separated by spaces.
func FormatWord(str *strings.Builder, words []uint32) {
	for _, w := range words {
		shift := 28
		for range 8 {
			str.WriteByte(hexMap[(w>>uint(shift))&0xf])
			shift -= 4
		}
		str.WriteByte(' ')
	}
}

// FormatBytes appends each byte as two hex digits, optionally
// space-separated.
func FormatBytes(str *strings.Builder, space bool, data []byte) {
	for _, by := range data {
		str.WriteByte(hexMap[(by>>4)&0xf])
		str.WriteByte(hexMap[by&0xf])
		if space {
			str.WriteByte(' ')
		}
	}
}

// FormatByte appends a single byte as two hex digits.
func FormatByte(str *strings.Builder, data byte) {
	str.WriteByte(hexMap[(data>>4)&0xf])
	str.WriteByte(hexMap[data&0xf])
}

// DumpLine renders one classic hex-dump row: an address, 16
// space-separated byte pairs, and the printable ASCII rendering.
func DumpLine(addr uint64, data []byte) string {
	var b strings.Builder
	FormatQuad(&b, []uint64{addr})
	b.WriteString(" ")
	FormatBytes(&b, true, data)
	for i := len(data); i < 16; i++ {
		b.WriteString("   ")
	}
	b.WriteString(" |")
	for _, by := range data {
		if by >= 0x20 && by < 0x7f {
			b.WriteByte(by)
		} else {
			b.WriteByte('.')
		}
	}
	b.WriteString("|")
	return b.String()
}
