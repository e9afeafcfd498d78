package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/core/usecases"
	"github.com/samirrijal/fieldgeo/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services. It mirrors
// the REST read operations.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	positionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AgentPosition",
		Fields: graphql.Fields{
			"user_id":   &graphql.Field{Type: graphql.Int},
			"name":      &graphql.Field{Type: graphql.String},
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
			"timestamp": &graphql.Field{Type: graphql.String},
		},
	})

	distanceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Distance",
		Fields: graphql.Fields{
			"distance_km":            &graphql.Field{Type: graphql.Float},
			"distance_mi":            &graphql.Field{Type: graphql.Float},
			"estimated_time_minutes": &graphql.Field{Type: graphql.Int},
			"estimated_time_text":    &graphql.Field{Type: graphql.String},
			"bearing_degrees":        &graphql.Field{Type: graphql.Float},
		},
	})

	stopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteStop",
		Fields: graphql.Fields{
			"customer_id":            &graphql.Field{Type: graphql.Int},
			"customer_name":          &graphql.Field{Type: graphql.String},
			"customer_company":       &graphql.Field{Type: graphql.String},
			"distance_from_previous": &graphql.Field{Type: graphql.Float},
			"estimated_time_minutes": &graphql.Field{Type: graphql.Int},
			"sequence_index":         &graphql.Field{Type: graphql.Int},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"route":                        &graphql.Field{Type: graphql.NewList(stopType)},
			"total_distance_km":            &graphql.Field{Type: graphql.Float},
			"total_estimated_time_minutes": &graphql.Field{Type: graphql.Int},
			"skipped_count":                &graphql.Field{Type: graphql.Int},
			"skipped_ids":                  &graphql.Field{Type: graphql.NewList(graphql.Int)},
			"warning":                      &graphql.Field{Type: graphql.String},
			"reason":                       &graphql.Field{Type: graphql.String},
		},
	})

	stageCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StageCount",
		Fields: graphql.Fields{
			"stage": &graphql.Field{Type: graphql.String},
			"count": &graphql.Field{Type: graphql.Int},
		},
	})

	analyticsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CustomerAnalytics",
		Fields: graphql.Fields{
			"recent_customers_count":        &graphql.Field{Type: graphql.Int},
			"recent_interactions_count":     &graphql.Field{Type: graphql.Int},
			"conversion_rate":               &graphql.Field{Type: graphql.Float},
			"avg_interactions_per_customer": &graphql.Field{Type: graphql.Float},
			"total_customers":               &graphql.Field{Type: graphql.Int},
			"total_interactions":            &graphql.Field{Type: graphql.Int},
			"stage_counts":                  &graphql.Field{Type: graphql.NewList(stageCountType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"fleet": &graphql.Field{
				Type:        graphql.NewList(positionType),
				Description: "Latest fresh position of every agent",
				Args: graphql.FieldConfigArgument{
					"max_age_seconds": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var maxAge time.Duration
					if secs, ok := p.Args["max_age_seconds"].(int); ok {
						if secs <= 0 {
							return nil, errors.New("max_age_seconds must be positive")
						}
						maxAge = time.Duration(secs) * time.Second
					}
					fleet := deps.Locations.Fleet(p.Context, maxAge)
					out := make([]map[string]interface{}, 0, len(fleet))
					for _, pos := range fleet {
						out = append(out, positionMap(pos))
					}
					return out, nil
				},
			},
			"agent": &graphql.Field{
				Type:        positionType,
				Description: "Last known position of one agent",
				Args: graphql.FieldConfigArgument{
					"user_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["user_id"].(int)
					pos, err := deps.Locations.Get(p.Context, int64(id))
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return positionMap(pos), nil
				},
			},
			"distance": &graphql.Field{
				Type:        distanceType,
				Description: "Great-circle distance and travel estimate between two points",
				Args: graphql.FieldConfigArgument{
					"lat1": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng1": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lat2": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng2": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat1, _ := p.Args["lat1"].(float64)
					lng1, _ := p.Args["lng1"].(float64)
					lat2, _ := p.Args["lat2"].(float64)
					lng2, _ := p.Args["lng2"].(float64)
					from, to := domain.GeoPoint{Lat: lat1, Lon: lng1}, domain.GeoPoint{Lat: lat2, Lon: lng2}
					res, err := deps.Distance.Compute(from, to)
					if err != nil {
						return nil, err
					}
					bearing, _ := geospatial.Bearing(from, to)
					return map[string]interface{}{
						"distance_km":            res.DistanceKm,
						"distance_mi":            res.DistanceMi,
						"estimated_time_minutes": res.EstimatedTimeMinutes,
						"estimated_time_text":    res.EstimatedTimeText,
						"bearing_degrees":        geospatial.Round(bearing, 1),
					}, nil
				},
			},
			"routePlan": &graphql.Field{
				Type:        routeType,
				Description: "Visit order for the given customers, from an origin or the caller's position",
				Args: graphql.FieldConfigArgument{
					"customer_ids":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.Int)))},
					"latitude":         &graphql.ArgumentConfig{Type: graphql.Float},
					"longitude":        &graphql.ArgumentConfig{Type: graphql.Float},
					"return_to_origin": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rawIDs, _ := p.Args["customer_ids"].([]interface{})
					if len(rawIDs) == 0 {
						return nil, errors.New("customer_ids must list at least one customer")
					}
					ids := make([]int64, 0, len(rawIDs))
					for _, v := range rawIDs {
						if id, ok := v.(int); ok {
							ids = append(ids, int64(id))
						}
					}

					var explicit *locationRequest
					lat, hasLat := p.Args["latitude"].(float64)
					lon, hasLon := p.Args["longitude"].(float64)
					if hasLat || hasLon {
						explicit = &locationRequest{}
						if hasLat {
							explicit.Latitude = &lat
						}
						if hasLon {
							explicit.Longitude = &lon
						}
					}
					caller, _ := callerFromContext(p.Context)
					origin, err := resolveOrigin(deps, caller, explicit)
					if err != nil {
						return nil, err
					}

					back, _ := p.Args["return_to_origin"].(bool)
					res, err := deps.Routes.PlanRoute(p.Context, origin, ids, usecases.PlanOptions{ReturnToOrigin: back})
					if err != nil {
						return nil, err
					}
					return routeMap(res), nil
				},
			},
			"analytics": &graphql.Field{
				Type:        analyticsType,
				Description: "Dashboard summary over customers and interactions",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := deps.Analytics.Summary(p.Context)
					if err != nil {
						return nil, err
					}
					stages := make([]map[string]interface{}, 0, len(domain.Stages))
					for _, stage := range domain.Stages {
						stages = append(stages, map[string]interface{}{"stage": stage, "count": s.StageCounts[stage]})
					}
					return map[string]interface{}{
						"recent_customers_count":        s.RecentCustomersCount,
						"recent_interactions_count":     s.RecentInteractionsCount,
						"conversion_rate":               s.ConversionRate,
						"avg_interactions_per_customer": s.AvgInteractionsPerCustomer,
						"total_customers":               s.TotalCustomers,
						"total_interactions":            s.TotalInteractions,
						"stage_counts":                  stages,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func positionMap(p domain.AgentPosition) map[string]interface{} {
	v := toLocationView(p)
	return map[string]interface{}{
		"user_id":   int(v.UserID),
		"name":      v.Name,
		"latitude":  v.Latitude,
		"longitude": v.Longitude,
		"timestamp": v.Timestamp,
	}
}

func routeMap(r *domain.RouteResult) map[string]interface{} {
	stops := make([]map[string]interface{}, 0, len(r.Route))
	for _, s := range r.Route {
		stops = append(stops, map[string]interface{}{
			"customer_id":            int(s.CustomerID),
			"customer_name":          s.CustomerName,
			"customer_company":       s.CustomerCompany,
			"distance_from_previous": s.DistanceFromPreviousKm,
			"estimated_time_minutes": s.EstimatedTimeMinutes,
			"sequence_index":         s.SequenceIndex,
		})
	}
	skipped := make([]int, 0, len(r.SkippedIDs))
	for _, id := range r.SkippedIDs {
		skipped = append(skipped, int(id))
	}
	out := map[string]interface{}{
		"route":                        stops,
		"total_distance_km":            r.TotalDistanceKm,
		"total_estimated_time_minutes": r.TotalEstimatedTimeMinutes,
		"skipped_count":                r.SkippedCount,
		"skipped_ids":                  skipped,
		"reason":                       r.Reason,
	}
	if w := r.Warning(); w != nil {
		out["warning"] = w.Message
	}
	return out
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
		if req.Query == "" {
			return errBadRequest(c, "query is required")
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
