/*
 * rviss - Configuration file parser
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

// Package configparser reads the machine-description file that tells
// cmd/rviss what hart, memory, and peripherals to build. The grammar
// is line oriented:
//
//	<line> := <model> <whitespace> <address> <whitespace> <options> |
//	          'logfile' <quoteopt> |
//	          'trace' <string> *(<commaopt>)
//	<model> := <string>
//	<address> ::= <string> | <hexnumber> | <number><K|M|G>
//	<options> ::= *(<option> *(<whitespace>))
//	<option> ::= <opt> *(',' *(<whitespace>) <string>)
//	<opt> := <string> ['=' <quoteopt>]
//
// Example:
//
//	hart0   rv64imafdc_su
//	mem     0x80000000 size=128M
//	clint   0x02000000
//	plic    0x0c000000
//	uart0   0x10000000
//	trace INST IRQ
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// NoAddr marks an option line with no leading numeric address.
const NoAddr uint64 = ^uint64(0)

// Option is one whitespace- or comma-separated token following a
// model's address, optionally carrying an '=' value and/or a
// comma-separated list of further values.
type Option struct {
	Name     string    // Name of option.
	EqualOpt string    // Value of string after =.
	Value    []*string // Value of option.
}

// Model specification.
type modelName struct {
	model string // value of model.
}

// First option parameter following the model name: either a bare
// string or a hex/decimal/K-M-G-suffixed address.
type FirstOption struct {
	Addr   uint64 // Value of option if numeric.
	IsAddr bool   // Valid numeric address in Addr.
	Value  string // String value of option.
}

// Current option line being parsed.
type optionLine struct {
	line string // Current option line.
	pos  int    // Current position in line.
}

const (
	TypeModel   = 1 + iota // Generic component, requires an address.
	TypeOption             // Accepts a single value parameter.
	TypeOptions            // Accepts a list of options.
	TypeSwitch             // Option only used to set a flag.
)

// Model creation list.
type modelDef struct {
	create func(uint64, string, []Option) error
	ty     int
}

var models = map[string]modelDef{}

var lineNumber int

// Return type of model or 0 if no model registered under that name.
func getModel(mod string) int {
	model, ok := models[mod]
	if !ok {
		return 0
	}
	return model.ty
}

// RegisterModel should be called from a component package's init
// function to claim a config-file keyword that always requires a
// leading address (hart, mem, clint, plic, uart...).
func RegisterModel(mod string, ty int, fn func(uint64, string, []Option) error) {
	mod = strings.ToUpper(mod)
	model := modelDef{create: fn, ty: ty}
	models[mod] = model
}

// RegisterSwitch claims a keyword with no address and no options, a
// plain on/off flag (e.g. "headless").
func RegisterSwitch(mod string, fn func(uint64, string, []Option) error) {
	mod = strings.ToUpper(mod)
	models[mod] = modelDef{create: fn, ty: TypeSwitch}
}

// RegisterOption claims a keyword taking exactly one value and no
// address (e.g. "logfile path").
func RegisterOption(mod string, fn func(uint64, string, []Option) error) {
	mod = strings.ToUpper(mod)
	models[mod] = modelDef{create: fn, ty: TypeOption}
}

// RegisterOptions claims a keyword taking a value plus a list of
// further options (e.g. "trace INST,IRQ").
func RegisterOptions(mod string, fn func(uint64, string, []Option) error) {
	mod = strings.ToUpper(mod)
	models[mod] = modelDef{create: fn, ty: TypeOptions}
}

func createModel(mod string, first *FirstOption, options []Option) error {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return errors.New("unknown component: " + mod)
	}
	if model.ty != TypeModel {
		return errors.New("not an addressed component: " + mod)
	}
	return model.create(first.Addr, "", options)
}

func createOption(mod string, first *FirstOption) error {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return errors.New("unknown option: " + mod)
	}
	if model.ty != TypeOption {
		return errors.New("not a single-value option: " + mod)
	}
	return model.create(NoAddr, first.Value, nil)
}

func createOptions(mod string, first *FirstOption, options []Option) error {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return errors.New("unknown option: " + mod)
	}
	if model.ty != TypeOptions {
		return errors.New("not a list option: " + mod)
	}
	return model.create(NoAddr, first.Value, options)
}

func createSwitch(mod string) error {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return errors.New("unknown switch: " + mod)
	}
	if model.ty != TypeSwitch {
		return errors.New("not a switch: " + mod)
	}
	return model.create(NoAddr, "", nil)
}

// LoadConfigFile reads and applies every line of a machine-description
// file, in order, failing on the first malformed or unknown line.
func LoadConfigFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	lineNumber = 0
	reader := bufio.NewReader(file)
	for {
		line := optionLine{}
		line.line, err = reader.ReadString('\n')
		lineNumber++
		if len(line.line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := line.parseLine(); err != nil {
			return err
		}
	}
	return nil
}

// Parse one line from file.
func (line *optionLine) parseLine() error {
	model := line.parseModel()
	if model == nil {
		return nil
	}
	switch getModel(model.model) {
	case TypeModel:
		first := line.parseFirst()
		if first == nil {
			return fmt.Errorf("component %s requires an address, line %d", model.model, lineNumber)
		}
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		return createModel(model.model, first, options)

	case TypeOption:
		first := line.parseFirst()
		line.skipSpace()
		if !line.isEOL() || first == nil {
			return fmt.Errorf("option %s not followed by a single value, line %d", model.model, lineNumber)
		}
		return createOption(model.model, first)

	case TypeOptions:
		first := line.parseFirst()
		if first == nil {
			return fmt.Errorf("option %s not followed by a value, line %d", model.model, lineNumber)
		}
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		return createOptions(model.model, first, options)

	case TypeSwitch:
		line.skipSpace()
		if !line.isEOL() {
			return fmt.Errorf("switch %s followed by options, line %d", model.model, lineNumber)
		}
		return createSwitch(model.model)

	case 0:
		return fmt.Errorf("no component registered for %s, line %d", model.model, lineNumber)
	}
	return nil
}

// Skip forward over line until a non-whitespace character is found.
func (line *optionLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

// Check if at end of line (or at a comment).
func (line *optionLine) isEOL() bool {
	return line.pos >= len(line.line) || line.line[line.pos] == '#'
}

// Return next letter or digit in line. 0 if EOL or space.
func (line *optionLine) getNext(inQuote bool) byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	by := line.line[line.pos]
	if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || inQuote {
		return by
	}
	return 0
}

// Peek at next character.
func (line *optionLine) getPeek() byte {
	if (line.pos + 1) >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// Parse model/component keyword.
func (line *optionLine) parseModel() *modelName {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}

	model := modelName{}
	for !line.isEOL() {
		by := line.line[line.pos]
		if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || by == '_' {
			model.model += string([]byte{by})
			line.pos++
			continue
		}
		break
	}
	model.model = strings.ToUpper(model.model)
	return &model
}

// Parse the first token following the model keyword: a bare word, a
// 0x-prefixed hex address, or a decimal number with an optional K/M/G
// size suffix.
func (line *optionLine) parseFirst() *FirstOption {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}

	start := line.pos
	value := ""
	for !line.isEOL() {
		by := line.line[line.pos]
		if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || by == 'x' || by == 'X' || by == '_' {
			value += string([]byte{by})
			line.pos++
			continue
		}
		break
	}
	_ = start

	option := FirstOption{Value: value}
	if addr, ok := parseSizedNumber(value); ok {
		option.Addr = addr
		option.IsAddr = true
	}
	return &option
}

// ParseSizedNumber parses "0x80000000", "128M", "4096", "64K", "1G" —
// exported so a component's RegisterModel callback can apply the same
// address/size grammar to its own options (e.g. "mem ... size=128M").
func ParseSizedNumber(value string) (uint64, bool) {
	return parseSizedNumber(value)
}

// parseSizedNumber parses "0x80000000", "128M", "4096", "64K", "1G".
func parseSizedNumber(value string) (uint64, bool) {
	if value == "" {
		return 0, false
	}
	mult := uint64(1)
	switch value[len(value)-1] {
	case 'k', 'K':
		mult = 1024
		value = value[:len(value)-1]
	case 'm', 'M':
		mult = 1024 * 1024
		value = value[:len(value)-1]
	case 'g', 'G':
		mult = 1024 * 1024 * 1024
		value = value[:len(value)-1]
	}
	n, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, false
	}
	return n * mult, true
}

// Parse string that is "string" or just string.
func (line *optionLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""

	if line.getPeek() == '"' {
		inQuote = true
		_ = line.getNext(true)
	}

	for {
		by := line.getNext(inQuote)
		if by == '"' && inQuote {
			by = line.getNext(inQuote)
			if by != '"' {
				return value, true
			}
		}

		space := unicode.IsSpace(rune(by))
		if !inQuote && (space || by == 0 || by == ',') {
			return value, true
		}

		value += string(by)
		if line.isEOL() {
			return value, !inQuote
		}
	}
}

// Parse option name.
func (line *optionLine) getName() (string, error) {
	if line.isEOL() {
		return "", nil
	}

	by := line.line[line.pos]
	if !unicode.IsLetter(rune(by)) {
		return "", fmt.Errorf("invalid option encountered line %d [%d]", lineNumber, line.pos)
	}
	value := ""
	for {
		value += string([]byte{by})
		by = line.getNext(false)
		if by == 0 {
			break
		}
	}
	return value, nil
}

// Parse one option token for a line.
func (line *optionLine) parseOption() (*Option, error) {
	line.skipSpace()

	value, err := line.getName()
	if value == "" {
		return nil, err
	}

	option := Option{Name: value}
	if line.isEOL() {
		return &option, nil
	}

	if line.line[line.pos] == '=' {
		v, ok := line.parseQuoteString()
		if !ok {
			return nil, fmt.Errorf("invalid quoted string line %d [%d]", lineNumber, line.pos)
		}
		option.EqualOpt = v
	}

	line.skipSpace()

	for !line.isEOL() && line.line[line.pos] == ',' {
		line.pos++
		line.skipSpace()
		v, err := line.getName()
		if err != nil {
			return nil, err
		}
		if v != "" {
			option.Value = append(option.Value, &v)
		}
		line.skipSpace()
	}

	return &option, nil
}

// Collect all remaining options for a line.
func (line *optionLine) parseOptions() ([]Option, error) {
	options := []Option{}
	for {
		option, err := line.parseOption()
		if err != nil {
			return nil, err
		}
		if option == nil {
			break
		}
		options = append(options, *option)
	}
	return options, nil
}
