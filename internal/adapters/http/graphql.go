package http

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/selection"
)

// buildSchema creates the GraphQL schema wired to our services. Resolvers
// return domain values; graphql-go matches fields by json tag.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	communeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Commune",
		Fields: graphql.Fields{
			"nom":  &graphql.Field{Type: graphql.String},
			"code": &graphql.Field{Type: graphql.String},
		},
	})

	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointPrelevement",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"nom":         &graphql.Field{Type: graphql.String},
			"autresNoms":  &graphql.Field{Type: graphql.String},
			"typeMilieu":  &graphql.Field{Type: graphql.String},
			"usages":      &graphql.Field{Type: graphql.NewList(graphql.String)},
			"statut":      &graphql.Field{Type: graphql.String},
			"heureDebut":  &graphql.Field{Type: graphql.String},
			"heureFin":    &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: geoPointType},
			"commune":     &graphql.Field{Type: communeType},
			"preleveurs":  &graphql.Field{Type: graphql.NewList(graphql.String)},
			"distance":    &graphql.Field{Type: graphql.Float},
			"label": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					switch pt := p.Source.(type) {
					case domain.PointPrelevement:
						return domain.PointLabel(&pt, ""), nil
					case *domain.PointPrelevement:
						return domain.PointLabel(pt, ""), nil
					}
					return nil, nil
				},
			},
		},
	})

	preleveurType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Preleveur",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"display_name":   &graphql.Field{Type: graphql.String},
			"sigle":          &graphql.Field{Type: graphql.String},
			"raison_sociale": &graphql.Field{Type: graphql.String},
			"civilite":       &graphql.Field{Type: graphql.String},
			"nom":            &graphql.Field{Type: graphql.String},
			"prenom":         &graphql.Field{Type: graphql.String},
			"email":          &graphql.Field{Type: graphql.String},
			"telephone":      &graphql.Field{Type: graphql.String},
			"points":         &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	countType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Count",
		Fields: graphql.Fields{
			"key":   &graphql.Field{Type: graphql.String},
			"count": &graphql.Field{Type: graphql.Int},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stats",
		Fields: graphql.Fields{
			"total":               &graphql.Field{Type: graphql.Int},
			"matched":             &graphql.Field{Type: graphql.Int},
			"without_coordinates": &graphql.Field{Type: graphql.Int},
			"by_usage":            &graphql.Field{Type: graphql.NewList(countType), Resolve: countsOf("by_usage")},
			"by_type_milieu":      &graphql.Field{Type: graphql.NewList(countType), Resolve: countsOf("by_type_milieu")},
		},
	})

	filterArgs := graphql.FieldConfigArgument{
		"name":       &graphql.ArgumentConfig{Type: graphql.String},
		"typeMilieu": &graphql.ArgumentConfig{Type: graphql.String},
		"usages":     &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"points": &graphql.Field{
				Type:        graphql.NewList(pointType),
				Description: "Points de prélèvement matching the filters, sorted by name",
				Args:        filterArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Points.List(p.Context, filtersFromArgs(p.Args))
				},
			},
			"point": &graphql.Field{
				Type:        pointType,
				Description: "Get a point by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Points.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"pointsNearby": &graphql.Field{
				Type:        graphql.NewList(pointType),
				Description: "Find points near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Points.FindNearby(p.Context, lat, lon, radius, limit)
				},
			},
			"preleveurs": &graphql.Field{
				Type:        graphql.NewList(preleveurType),
				Description: "List all preleveurs",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					list, err := deps.Preleveurs.List(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(list))
					for i, v := range list {
						out[i] = preleveurFields(v)
					}
					return out, nil
				},
			},
			"preleveur": &graphql.Field{
				Type:        preleveurType,
				Description: "Get a preleveur by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Preleveurs.GetByID(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return preleveurFields(*v), nil
				},
			},
			"stats": &graphql.Field{
				Type:        statsType,
				Description: "Counts over the points matching the filters",
				Args:        filterArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					st, err := deps.Stats.Compute(p.Context, filtersFromArgs(p.Args))
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"total":               st.Total,
						"matched":             st.Matched,
						"without_coordinates": st.WithoutCoordinates,
						"by_usage":            st.ByUsage,
						"by_type_milieu":      st.ByTypeMilieu,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// preleveurFields flattens a view; the default resolver does not descend
// into embedded structs.
func preleveurFields(v domain.PreleveurView) map[string]interface{} {
	return map[string]interface{}{
		"id":             v.ID,
		"display_name":   v.DisplayName,
		"sigle":          v.Sigle,
		"raison_sociale": v.RaisonSociale,
		"civilite":       v.Civilite,
		"nom":            v.Nom,
		"prenom":         v.Prenom,
		"email":          v.Email,
		"telephone":      v.Telephone,
		"points":         v.PointIDs,
	}
}

func filtersFromArgs(args map[string]interface{}) selection.Filters {
	var f selection.Filters
	f.Name, _ = args["name"].(string)
	f.TypeMilieu, _ = args["typeMilieu"].(string)
	if list, ok := args["usages"].([]interface{}); ok {
		for _, u := range list {
			if s, ok := u.(string); ok {
				f.Usages = append(f.Usages, s)
			}
		}
	}
	return f
}

// countsOf turns a map[string]int of the stats result into a sorted list
// of {key, count}.
func countsOf(field string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		src, _ := p.Source.(map[string]interface{})
		counts, _ := src[field].(map[string]int)
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]map[string]interface{}, len(keys))
		for i, k := range keys {
			out[i] = map[string]interface{}{"key": k, "count": counts[k]}
		}
		return out, nil
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
