/*
 * rviss - Trace options configuration.
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

// Package traceconfig registers the "trace" and "tracefile" config
// keywords against config/configparser, translating them into calls
// on util/debug. Importing it for side effect (as cmd/rviss does) is
// what makes those keywords available in a machine-description file.
package traceconfig

import (
	"fmt"
	"os"
	"strings"

	config "github.com/rvsim/rviss/config/configparser"
	"github.com/rvsim/rviss/util/debug"
)

func init() {
	config.RegisterOptions("TRACE", setTrace)
	config.RegisterOption("TRACEFILE", setTraceFile)
}

// setTrace handles "trace CATEGORY [CATEGORY...]".
func setTrace(_ uint64, first string, options []config.Option) error {
	if err := enable(first); err != nil {
		return err
	}
	for _, opt := range options {
		if err := enable(opt.Name); err != nil {
			return err
		}
		for _, v := range opt.Value {
			if err := enable(*v); err != nil {
				return err
			}
		}
	}
	return nil
}

func enable(name string) error {
	name = strings.ToUpper(name)
	bit, ok := debug.Categories[name]
	if !ok {
		return fmt.Errorf("unknown trace category: %s", name)
	}
	debug.Enable(bit)
	return nil
}

// setTraceFile handles "tracefile path".
func setTraceFile(_ uint64, path string, _ []config.Option) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create trace file: %s", path)
	}
	debug.SetOutput(file)
	return nil
}
