// Command openapi-compat fails when a revision of the zanhu API drops
// something clients of a base swagger document rely on: a path, an
// operation, a documented response code, or when it starts requiring a
// query, header or body parameter the base did not.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"zanhu/docs"

	"gopkg.in/yaml.v3"
)

var httpMethods = []string{"get", "put", "post", "delete", "patch", "head", "options"}

type parameter struct {
	Name     string `yaml:"name"`
	In       string `yaml:"in"`
	Required bool   `yaml:"required"`
}

type operation struct {
	Parameters []parameter          `yaml:"parameters"`
	Responses  map[string]yaml.Node `yaml:"responses"`
}

// apiDoc holds the operations of a swagger document, keyed by path then method.
type apiDoc struct {
	Paths map[string]map[string]operation
}

func main() {
	basePath := flag.String("base", "", "base swagger document (yaml or json)")
	revisionPath := flag.String("revision", "", "revision swagger document; defaults to the document compiled into this build")
	dump := flag.Bool("dump", false, "print the compiled-in document and exit")
	flag.Parse()

	if *dump {
		fmt.Println(docs.SwaggerInfo.ReadDoc())
		return
	}
	if strings.TrimSpace(*basePath) == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -base <path> [-revision <path>] | -dump")
		os.Exit(2)
	}

	base, err := loadDoc(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "base: %v\n", err)
		os.Exit(1)
	}

	var revision apiDoc
	if strings.TrimSpace(*revisionPath) == "" {
		revision, err = parseDoc([]byte(docs.SwaggerInfo.ReadDoc()))
	} else {
		revision, err = loadDoc(*revisionPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "revision: %v\n", err)
		os.Exit(1)
	}

	if issues := breakingChanges(base, revision); len(issues) > 0 {
		fmt.Fprintf(os.Stderr, "%d breaking change(s):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		os.Exit(1)
	}
	fmt.Printf("compatible: %d paths checked\n", len(base.Paths))
}

func loadDoc(path string) (apiDoc, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return apiDoc{}, err
	}
	return parseDoc(raw)
}

// parseDoc reads a swagger document. JSON is a subset of YAML, so both parse.
func parseDoc(raw []byte) (apiDoc, error) {
	var root struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return apiDoc{}, fmt.Errorf("decode: %w", err)
	}
	if root.Paths == nil {
		return apiDoc{}, errors.New("document has no paths")
	}

	doc := apiDoc{Paths: make(map[string]map[string]operation, len(root.Paths))}
	for path, item := range root.Paths {
		ops := make(map[string]operation)
		for key, node := range item {
			method := strings.ToLower(strings.TrimSpace(key))
			if !slices.Contains(httpMethods, method) {
				continue
			}
			var op operation
			if err := node.Decode(&op); err != nil {
				return apiDoc{}, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
			}
			ops[method] = op
		}
		if len(ops) > 0 {
			doc.Paths[path] = ops
		}
	}
	return doc, nil
}

func breakingChanges(base, revision apiDoc) []string {
	var issues []string
	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, "removed path: "+path)
			continue
		}
		for method, baseOp := range baseOps {
			op := strings.ToUpper(method) + " " + path
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, "removed operation: "+op)
				continue
			}
			for code := range baseOp.Responses {
				if _, ok := revOp.Responses[code]; !ok {
					issues = append(issues, fmt.Sprintf("removed response code: %s -> %s", op, code))
				}
			}
			for _, p := range newlyRequired(baseOp, revOp) {
				issues = append(issues, fmt.Sprintf("new required %s parameter: %s -> %s", p.In, op, p.Name))
			}
		}
	}
	slices.Sort(issues)
	return issues
}

// newlyRequired lists required revision parameters the base operation did not
// require. Path parameters are fixed by the path template and are skipped.
func newlyRequired(base, revision operation) []parameter {
	var out []parameter
	for _, p := range revision.Parameters {
		if !p.Required || p.In == "path" {
			continue
		}
		known := slices.ContainsFunc(base.Parameters, func(b parameter) bool {
			return b.Name == p.Name && b.In == p.In && b.Required
		})
		if !known {
			out = append(out, p)
		}
	}
	return out
}
