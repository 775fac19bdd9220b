// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/llumdocs/internal/util"
)

// maxStdinBytes bounds text read from stdin or --file. The services apply
// their own character limit afterwards.
const maxStdinBytes = 16 << 20

// addInputFlags adds --file to a command that takes text.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Read the text from a file")
}

// readInput returns the command's text: --file when given, then the
// arguments joined by spaces, then stdin. "-" as the only argument forces
// stdin.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		return readTextFile(path)
	}
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	if len(args) == 0 && cmd.InOrStdin() == os.Stdin && IsStdinTTY() {
		return "", usageErrorf("no input: pass text as arguments, with --file, or on stdin")
	}
	data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxStdinBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxStdinBytes {
		return "", usageErrorf("input is larger than %s", humanize.IBytes(maxStdinBytes))
	}
	if util.IsBlank(string(data)) {
		return "", usageErrorf("input is empty")
	}
	return string(data), nil
}

func readTextFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", usageErrorf("cannot read %s: %v", path, err)
	}
	if info.Size() > maxStdinBytes {
		return "", usageErrorf("%s is %s, the limit is %s", path,
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(maxStdinBytes))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", usageErrorf("cannot read %s: %v", path, err)
	}
	return string(data), nil
}

// readImage loads an image file, refusing anything over limit bytes.
func readImage(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, usageErrorf("cannot read %s: %v", path, err)
	}
	if limit > 0 && info.Size() > limit {
		return nil, usageErrorf("%s is %s, the limit is %s", path,
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(limit)))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, usageErrorf("cannot read %s: %v", path, err)
	}
	return data, nil
}
