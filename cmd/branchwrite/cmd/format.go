// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const formatFlag = "format"

// Formatter writes the result of a command
type Formatter interface {
	Format(io.Writer, interface{}) error
}

// FormatterFunc is a function usable as a Formatter
type FormatterFunc func(io.Writer, interface{}) error

// Format the data
func (f FormatterFunc) Format(w io.Writer, data interface{}) error {
	return f(w, data)
}

var (
	yamlFormatter FormatterFunc = func(w io.Writer, data interface{}) error {
		out, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	jsonFormatter FormatterFunc = func(w io.Writer, data interface{}) error {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	// formatters available to each command, by command name
	formatters = map[string]map[string]Formatter{}
)

// addFormatFlag registers the output formats of a command. yaml and json are always available.
func addFormatFlag(cmd *cobra.Command, defaultFormat string, extra map[string]Formatter) string {
	available := map[string]Formatter{
		"yaml": yamlFormatter,
		"json": jsonFormatter,
	}
	for name, formatter := range extra {
		available[name] = formatter
	}
	formatters[cmd.Name()] = available

	names := make([]string, 0, len(available))
	for name := range available {
		names = append(names, name)
	}
	sort.Strings(names)
	cmd.Flags().String(formatFlag, defaultFormat, "The output format: "+strings.Join(names, ", "))
	return formatFlag
}

// print the result of a command in the format selected by its --format flag
func print(cmd *cobra.Command, data interface{}) error {
	format, err := cmd.Flags().GetString(formatFlag)
	if err != nil {
		return err
	}
	formatter, ok := formatters[cmd.Name()][format]
	if !ok {
		return fmt.Errorf("unsupported output format %q", format)
	}
	return formatter.Format(cmd.OutOrStdout(), data)
}

// highlight some identifier on terminals
func highlight(s string) string {
	return color.YellowString("%s", s)
}
