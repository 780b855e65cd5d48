package httpapi

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/DuMaciel/WeatherForecast/internal/weather"
)

const refreshFailedMessage = "could not refresh forecast"

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations/search", func(c *fiber.Ctx) error {
		q := c.Query("q")
		locs, err := service.Search(c.UserContext(), q)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"query":   q,
			"results": locs,
		})
	})

	favorites := v1.Group("/favorites")

	favorites.Get("/", func(c *fiber.Ctx) error {
		coll, err := service.LoadFavorites(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(coll)
	})

	favorites.Post("/", func(c *fiber.Ctx) error {
		var loc weather.Location
		if err := c.BodyParser(&loc); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid location body: "+err.Error())
		}

		tracked, err := service.AddFavorite(c.UserContext(), loc)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(tracked)
	})

	favorites.Delete("/", func(c *fiber.Ctx) error {
		if err := service.ClearFavorites(c.UserContext()); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Static segments before /:id.
	favorites.Get("/status", func(c *fiber.Ctx) error {
		rows, err := service.Status(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(rows)
	})

	favorites.Post("/refresh", func(c *fiber.Ctx) error {
		coll, refreshed, err := service.RefreshFavorites(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"refreshed": refreshed,
			"favorites": coll,
		})
	})

	favorites.Get("/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		ok, err := service.IsFavorite(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"id":       id,
			"favorite": ok,
		})
	})

	favorites.Delete("/:id", func(c *fiber.Ctx) error {
		if err := service.RemoveFavorite(c.UserContext(), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	favorites.Post("/:id/refresh", func(c *fiber.Ctx) error {
		id := c.Params("id")
		tracked, err := service.RefreshByID(c.UserContext(), id)
		if weather.IsFetchError(err) {
			slog.Warn("manual refresh failed", "id", id, "error", err)
			return fiber.NewError(fiber.StatusBadGateway, refreshFailedMessage)
		}
		if err != nil {
			return err
		}
		return c.JSON(tracked)
	})

	favorites.Get("/:id/forecast", func(c *fiber.Ctx) error {
		view, err := service.Forecast(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(view)
	})

	v1.Post("/cache/clear", func(c *fiber.Ctx) error {
		if err := service.ClearCache(c.UserContext()); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// ErrorHandler renders every error as {"error": true, "message": ...} with a
// status derived from its kind.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, weather.ErrInvalidQuery), errors.Is(err, weather.ErrInvalidLocation):
		return fiber.StatusBadRequest
	case errors.Is(err, weather.ErrNotTracked):
		return fiber.StatusNotFound
	case errors.Is(err, weather.ErrStorage):
		return fiber.StatusInternalServerError
	case weather.IsFetchError(err):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
