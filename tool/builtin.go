package tool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Built-in tool names.
const (
	GetCwdName          = "get-cwd"
	ReadFileName        = "read-file"
	WriteFileName       = "write-file"
	CreateDirectoryName = "create-directory"
	ListDirectoryName   = "list-directory"
)

// Builtins returns the built-in filesystem tools. Relative paths are resolved
// against root; an empty root means the process working directory.
func Builtins(root string) []Tool {
	fsys := localFS{root: root}
	return []Tool{
		NewFunctionTool(
			GetCwdName,
			"Get the current working directory",
			"String - information about the current working directory",
			nil,
			fsys.getCwd,
		),
		NewFunctionTool(
			ReadFileName,
			"Read a file in the filesystem",
			"String - the contents of the file specified in `path`",
			[]Parameter{{Name: "path", Type: "string", Description: "path and filename of the file to read", Required: true}},
			fsys.readFile,
		),
		NewFunctionTool(
			WriteFileName,
			"Write content to a file in the filesystem",
			"String - confirmation message indicating success or failure",
			[]Parameter{
				{Name: "path", Type: "string", Description: "path and filename of the file to write", Required: true},
				{Name: "content", Type: "string", Description: "the content to write to the file", Required: true},
			},
			fsys.writeFile,
		),
		NewFunctionTool(
			CreateDirectoryName,
			"Create a new directory in the filesystem",
			"String - confirmation message indicating success or failure",
			[]Parameter{{Name: "path", Type: "string", Description: "path of the directory to create", Required: true}},
			fsys.createDirectory,
		),
		NewFunctionTool(
			ListDirectoryName,
			"List the contents of a directory in the filesystem",
			"String - a list of files and directories in the specified path",
			[]Parameter{{Name: "path", Type: "string", Description: "path of the directory to list. If not provided, lists the current working directory."}},
			fsys.listDirectory,
		),
	}
}

type localFS struct {
	root string
}

func (l localFS) resolve(path string) string {
	if l.root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.root, path)
}

func (l localFS) getCwd(_ context.Context, _ map[string]string) (string, error) {
	var (
		dir string
		err error
	)
	if l.root != "" {
		dir, err = filepath.Abs(l.root)
	} else {
		dir, err = os.Getwd()
	}
	if err != nil {
		return "", fsError(GetCwdName, CodeExecution, fmt.Sprintf("Error getting current working directory: %v", err), err)
	}
	return dir, nil
}

func (l localFS) readFile(_ context.Context, args map[string]string) (string, error) {
	path := args["path"]
	b, err := os.ReadFile(l.resolve(path))
	switch {
	case err == nil:
		return string(b), nil
	case errors.Is(err, fs.ErrNotExist):
		return "", fsError(ReadFileName, CodeNotFound, "File not found: "+path, err)
	case errors.Is(err, fs.ErrPermission):
		return "", fsError(ReadFileName, CodePermissionDenied, "Permission denied: "+path, err)
	default:
		return "", fsError(ReadFileName, CodeExecution, fmt.Sprintf("Error reading file: %v", err), err)
	}
}

func (l localFS) writeFile(_ context.Context, args map[string]string) (string, error) {
	path := args["path"]
	err := os.WriteFile(l.resolve(path), []byte(args["content"]), 0o644)
	switch {
	case err == nil:
		return "File written successfully: " + path, nil
	case errors.Is(err, fs.ErrPermission):
		return "", fsError(WriteFileName, CodePermissionDenied, "Permission denied: "+path, err)
	default:
		return "", fsError(WriteFileName, CodeExecution, fmt.Sprintf("Error writing file: %v", err), err)
	}
}

func (l localFS) createDirectory(_ context.Context, args map[string]string) (string, error) {
	path := args["path"]
	err := os.MkdirAll(l.resolve(path), 0o755)
	switch {
	case err == nil:
		return "Directory created successfully: " + path, nil
	case errors.Is(err, fs.ErrPermission):
		return "", fsError(CreateDirectoryName, CodePermissionDenied, "Permission denied: "+path, err)
	default:
		return "", fsError(CreateDirectoryName, CodeExecution, fmt.Sprintf("Error creating directory: %v", err), err)
	}
}

func (l localFS) listDirectory(_ context.Context, args map[string]string) (string, error) {
	path, ok := args["path"]
	if !ok || path == "" {
		path = "."
	}
	entries, err := os.ReadDir(l.resolve(path))
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		return "", fsError(ListDirectoryName, CodeNotFound, "Directory not found: "+path, err)
	case errors.Is(err, fs.ErrPermission):
		return "", fsError(ListDirectoryName, CodePermissionDenied, "Permission denied: "+path, err)
	default:
		return "", fsError(ListDirectoryName, CodeExecution, fmt.Sprintf("Error listing directory: %v", err), err)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return fmt.Sprintf("Contents of directory '%s': %s", path, strings.Join(names, ", ")), nil
}

func fsError(tool, code, msg string, err error) *ToolError {
	return &ToolError{Tool: tool, Message: msg, Code: code, Err: err}
}
