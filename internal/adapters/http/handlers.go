package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/core/usecases"
)

// TimestampLayout is the wire format of position timestamps (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// maxFleetAge caps ?max_age on the fleet listing.
const maxFleetAge = 24 * time.Hour

// maxNearRadius caps radius_m on the fleet listing, in meters.
const maxNearRadius = 200_000.0

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// locationView is one fleet entry as served to the map.
type locationView struct {
	UserID    int64   `json:"user_id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

func toLocationView(p domain.AgentPosition) locationView {
	return locationView{
		UserID:    p.AgentID,
		Name:      p.Name,
		Latitude:  p.Point.Lat,
		Longitude: p.Point.Lon,
		Timestamp: p.RecordedAt.UTC().Format(TimestampLayout),
	}
}

// PostLocationHandler records the caller's current position.
func PostLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Latitude == nil || req.Longitude == nil {
			return errBadRequest(c, "latitude and longitude are required")
		}

		accepted, err := deps.Locations.Report(c.UserContext(), callerID(c),
			domain.GeoPoint{Lat: *req.Latitude, Lon: *req.Longitude})
		if err != nil {
			return errFromDomain(c, err)
		}
		if !accepted {
			return c.JSON(fiber.Map{
				"message":  "A newer location is already recorded",
				"accepted": false,
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Location updated successfully"})
	}
}

// ListLocationsHandler returns the latest fresh position of every agent.
// ?max_age (seconds) narrows or widens the staleness window; near_lat,
// near_lng and radius_m together restrict it to a circle.
func ListLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var maxAge time.Duration
		if raw := c.Query("max_age"); raw != "" {
			secs, err := strconv.Atoi(raw)
			if err != nil || secs <= 0 {
				return errBadRequest(c, "max_age must be a positive number of seconds")
			}
			maxAge = time.Duration(secs) * time.Second
			if maxAge > maxFleetAge {
				maxAge = maxFleetAge
			}
		}

		var fleet []domain.AgentPosition
		if c.Query("near_lat") != "" || c.Query("near_lng") != "" || c.Query("radius_m") != "" {
			lat, errLat := strconv.ParseFloat(c.Query("near_lat"), 64)
			lng, errLng := strconv.ParseFloat(c.Query("near_lng"), 64)
			radius, errRadius := strconv.ParseFloat(c.Query("radius_m"), 64)
			if errLat != nil || errLng != nil || errRadius != nil {
				return errBadRequest(c, "near_lat, near_lng and radius_m must be given together as numbers")
			}
			if radius > maxNearRadius {
				radius = maxNearRadius
			}
			near, err := deps.Locations.FleetNear(c.UserContext(), domain.GeoPoint{Lat: lat, Lon: lng}, radius, maxAge)
			if err != nil {
				return errFromDomain(c, err)
			}
			fleet = near
		} else {
			fleet = deps.Locations.Fleet(c.UserContext(), maxAge)
		}

		out := make([]locationView, 0, len(fleet))
		for _, p := range fleet {
			out = append(out, toLocationView(p))
		}
		return c.JSON(out)
	}
}

// GetLocationHandler returns one agent's last known position, fresh or not.
func GetLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("agent_id"), 10, 64)
		if err != nil || id <= 0 {
			return errBadRequest(c, "agent_id must be a positive integer")
		}

		pos, err := deps.Locations.Get(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}

		view := toLocationView(pos)
		return c.JSON(fiber.Map{
			"user_id":   view.UserID,
			"name":      view.Name,
			"latitude":  view.Latitude,
			"longitude": view.Longitude,
			"timestamp": view.Timestamp,
			"stale":     deps.Locations.IsStale(pos),
		})
	}
}

type distanceRequest struct {
	Lat1 *float64 `json:"lat1"`
	Lng1 *float64 `json:"lng1"`
	Lat2 *float64 `json:"lat2"`
	Lng2 *float64 `json:"lng2"`
}

// DistanceHandler computes the great-circle distance between two points.
func DistanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req distanceRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat1 == nil || req.Lng1 == nil || req.Lat2 == nil || req.Lng2 == nil {
			return errBadRequest(c, "lat1, lng1, lat2 and lng2 are required")
		}

		res, err := deps.Distance.Compute(
			domain.GeoPoint{Lat: *req.Lat1, Lon: *req.Lng1},
			domain.GeoPoint{Lat: *req.Lat2, Lon: *req.Lng2},
		)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

type routeRequest struct {
	CustomerIDs    []int64          `json:"customer_ids"`
	Origin         *locationRequest `json:"origin"`
	ReturnToOrigin bool             `json:"return_to_origin"`
}

type routeResponse struct {
	*domain.RouteResult
	Warning string `json:"warning,omitempty"`
}

// RoutePlanningHandler orders the requested customers into a visit route.
// The origin defaults to the caller's fresh position.
func RoutePlanningHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req routeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.CustomerIDs) == 0 {
			return errBadRequest(c, "customer_ids must list at least one customer")
		}

		origin, err := resolveOrigin(deps, callerID(c), req.Origin)
		if err != nil {
			return errFromDomain(c, err)
		}

		res, err := deps.Routes.PlanRoute(c.UserContext(), origin, req.CustomerIDs,
			usecases.PlanOptions{ReturnToOrigin: req.ReturnToOrigin})
		if err != nil {
			return errFromDomain(c, err)
		}

		out := routeResponse{RouteResult: res}
		if w := res.Warning(); w != nil {
			out.Warning = w.Message
		}
		return c.JSON(out)
	}
}

// resolveOrigin picks the explicit origin, else the caller's fresh position.
func resolveOrigin(deps *Dependencies, caller int64, explicit *locationRequest) (domain.GeoPoint, error) {
	if explicit != nil {
		if explicit.Latitude == nil || explicit.Longitude == nil {
			return domain.GeoPoint{}, domain.NewError(domain.KindBadRequest, "origin needs latitude and longitude")
		}
		return domain.GeoPoint{Lat: *explicit.Latitude, Lon: *explicit.Longitude}, nil
	}

	pos, err := deps.Locations.FreshPosition(caller)
	if err != nil {
		return domain.GeoPoint{}, domain.WrapError(domain.KindOriginUnknown,
			"no origin given and no recent location reported for the caller", err)
	}
	return pos.Point, nil
}

// CustomerAnalyticsHandler returns the dashboard summary.
func CustomerAnalyticsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary, err := deps.Analytics.Summary(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summary)
	}
}
