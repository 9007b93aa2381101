package catalog

import (
	"fmt"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"grimoire/internal/core"
	"grimoire/pkg/domain"
)

const (
	typeArray   = "array"
	typeInteger = "integer"
	typeNumber  = "number"
	typeObject  = "object"
	typeString  = "string"
)

// APIVersion is reported in the generated OpenAPI document.
const APIVersion = "1.0.0"

type openAPIDoc map[string]any

// OpenAPI renders the REST contract for the given schemas as YAML. Query
// parameters are derived from each schema so bounds, categories and sort
// fields stay in step with the collections.
func OpenAPI(descriptors []domain.SchemaDescriptor) ([]byte, error) {
	doc := buildOpenAPIDoc(descriptors)
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode openapi: %w", err)
	}
	return out, nil
}

func buildOpenAPIDoc(descriptors []domain.SchemaDescriptor) openAPIDoc {
	paths := map[string]any{
		apiPrefix + "kinds": map[string]any{
			"get": operation("List collection kinds and schemas", nil, nil, response("Kind descriptors", ref("KindList"))),
		},
	}
	schemas := map[string]any{
		"Error": object(map[string]any{"error": prop(typeString)}),
		"FieldError": object(map[string]any{
			"field":   prop(typeString),
			"message": prop(typeString),
		}),
		"KindList": object(map[string]any{"kinds": map[string]any{"type": typeArray, "items": map[string]any{"type": typeObject}}}),
		"Criteria": object(map[string]any{
			"search":         prop(typeString),
			"category":       prop(typeString),
			"min":            map[string]any{"type": typeObject, "additionalProperties": prop(typeNumber)},
			"max":            map[string]any{"type": typeObject, "additionalProperties": prop(typeNumber)},
			"sort_field":     prop(typeString),
			"sort_direction": enum(string(domain.SortAsc), string(domain.SortDesc)),
		}),
	}

	for _, d := range descriptors {
		name := schemaName(d.Kind)
		base := apiPrefix + string(d.Kind)
		schemas[name] = recordSchema(d)
		schemas[name+"Page"] = object(map[string]any{
			"items":          map[string]any{"type": typeArray, "items": ref(name)},
			"page":           prop(typeInteger),
			"page_size":      prop(typeInteger),
			"total_items":    prop(typeInteger),
			"total_pages":    prop(typeInteger),
			"requested_page": prop(typeInteger),
			"clamped":        map[string]any{"type": "boolean"},
		})

		paths[base] = map[string]any{
			"get": operation("Query a derived page of "+string(d.Kind), queryParameters(d), nil,
				response("Derived page", ref(name+"Page"))),
			"post": operation("Add a record to "+string(d.Kind), nil, ref(name),
				map[string]any{
					"201": responseBody("Created record", ref(name)),
					"400": responseBody("Invalid record", ref("Error")),
				}),
		}
		paths[base+"/view"] = map[string]any{
			"get":   operation("Read the resident view", nil, nil, response("Resident view", ref(name+"Page"))),
			"patch": operation("Replace the resident criteria", nil, ref("Criteria"), response("Resident view", ref(name+"Page"))),
		}
		idParam := []any{map[string]any{"name": "id", "in": "path", "required": true, "schema": prop(typeInteger)}}
		paths[base+"/{id}"] = map[string]any{
			"get": operation("Fetch one record", idParam, nil, map[string]any{
				"200": responseBody("Record", ref(name)),
				"404": responseBody("Not found", ref("Error")),
			}),
			"delete": operation("Remove one record", idParam, nil, map[string]any{
				"204": map[string]any{"description": "Removed or already absent"},
			}),
		}
	}

	return openAPIDoc{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Grimoire Catalog API",
			"version": APIVersion,
		},
		"paths":      paths,
		"components": map[string]any{"schemas": schemas},
	}
}

func schemaName(kind domain.Kind) string {
	name := strings.TrimSuffix(string(kind), "s")
	if name == "" {
		return "Record"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func recordSchema(d domain.SchemaDescriptor) map[string]any {
	props := map[string]any{"id": map[string]any{"type": typeInteger, "readOnly": true}}
	for _, f := range d.Fields {
		props[f.Name] = fieldSchema(d, f)
	}
	return object(props)
}

func fieldSchema(d domain.SchemaDescriptor, f domain.FieldDescriptor) map[string]any {
	if f.Kind == domain.FieldNumber {
		s := prop(typeNumber)
		if f.Range != nil {
			s["minimum"] = f.Range.Min
			s["maximum"] = f.Range.Max
		}
		return s
	}
	if strings.EqualFold(f.Name, d.CategoryField) && len(d.Categories) > 0 {
		return enum(d.Categories...)
	}
	return prop(typeString)
}

func queryParameters(d domain.SchemaDescriptor) []any {
	params := []any{
		query(core.ParamSearch, prop(typeString), "Case-insensitive substring over searchable fields"),
		query("page", prop(typeInteger), "1-based page number; out of range pages clamp"),
		query("page_size", prop(typeInteger), fmt.Sprintf("Records per page (default %d)", core.DefaultPageSize)),
		query("format", enum("json", "csv"), "Response encoding"),
		query(core.ParamDirection, enum(string(domain.SortAsc), string(domain.SortDesc)), "Sort direction"),
	}
	if d.CategoryField != "" {
		schema := prop(typeString)
		if len(d.Categories) > 0 {
			schema = enum(append([]string{domain.AllCategories}, d.Categories...)...)
		}
		params = append(params, query(core.ParamCategory, schema, "Exact "+d.CategoryField+" match"))
	}
	sortable := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		sortable = append(sortable, f.Name)
		if f.Kind != domain.FieldNumber {
			continue
		}
		params = append(params,
			query(core.ParamMinPrefix+f.Name, fieldSchema(d, f), "Inclusive lower bound on "+f.Name),
			query(core.ParamMaxPrefix+f.Name, fieldSchema(d, f), "Inclusive upper bound on "+f.Name),
		)
	}
	return append(params, query(core.ParamSort, enum(sortable...), "Sort field"))
}

func operation(summary string, params []any, body map[string]any, responses map[string]any) map[string]any {
	op := map[string]any{"summary": summary, "responses": responses}
	if len(params) > 0 {
		op["parameters"] = params
	}
	if body != nil {
		op["requestBody"] = map[string]any{
			"required": true,
			"content":  map[string]any{"application/json": map[string]any{"schema": body}},
		}
	}
	return op
}

func response(description string, schema map[string]any) map[string]any {
	return map[string]any{"200": responseBody(description, schema)}
}

func responseBody(description string, schema map[string]any) map[string]any {
	return map[string]any{
		"description": description,
		"content":     map[string]any{"application/json": map[string]any{"schema": schema}},
	}
}

func query(name string, schema map[string]any, description string) map[string]any {
	return map[string]any{"name": name, "in": "query", "schema": schema, "description": description}
}

func object(props map[string]any) map[string]any {
	return map[string]any{"type": typeObject, "properties": props}
}

func prop(typ string) map[string]any { return map[string]any{"type": typ} }

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func enum(values ...string) map[string]any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return map[string]any{"type": typeString, "enum": out}
}

// NewOpenAPIHandler serves the rendered contract for c with a static
// content type.
func NewOpenAPIHandler(c Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var descriptors []domain.SchemaDescriptor
		if c != nil {
			for _, res := range c.Resources() {
				descriptors = append(descriptors, res.Descriptor())
			}
		}
		doc, err := OpenAPI(descriptors)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	})
}
