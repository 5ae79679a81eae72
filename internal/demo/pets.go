package demo

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ark7/a7router/internal/web/auth"
	"github.com/ark7/a7router/internal/web/websocket"
	"github.com/ark7/a7router/pkg/web/controller"
	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	errNotFound   = router.NewHTTPError(http.StatusNotFound, "NOT_FOUND", "Pet not found")
	errBadRequest = router.NewHTTPError(http.StatusBadRequest, "BAD_REQUEST", "Invalid pet")
)

// PetsController serves the pet collection
type PetsController struct {
	controller.Base
	store  *Store
	logger *zap.Logger
}

type petInput struct {
	Name    string `json:"name"`
	Species string `json:"species"`
}

type (
	inputKey struct{}
	eventKey struct{}
)

// List returns every pet
func (p *PetsController) List(c *middleware.Context) error {
	return router.WriteJSON(c.Writer, http.StatusOK, p.store.List())
}

// Show returns one pet
func (p *PetsController) Show(c *middleware.Context) error {
	pet, err := p.store.Get(chi.URLParam(c.Request, "id"))
	if err != nil {
		return notFound(err)
	}
	return router.WriteJSON(c.Writer, http.StatusOK, pet)
}

// Create stores the pet decoded by decode
func (p *PetsController) Create(c *middleware.Context) error {
	in, _ := c.Value(inputKey{}).(petInput)

	var owner string
	if claims, ok := auth.ClaimsFrom(c); ok {
		owner = claims.UserID
	}

	pet, err := p.store.Create(in.Name, in.Species, owner)
	if err != nil {
		return errBadRequest.Wrap(err)
	}
	c.Set(eventKey{}, websocket.Message{Type: "pet.created", Data: pet})
	return router.WriteJSON(c.Writer, http.StatusCreated, pet)
}

// Delete removes a pet
func (p *PetsController) Delete(c *middleware.Context) error {
	id := chi.URLParam(c.Request, "id")
	if err := p.store.Delete(id); err != nil {
		return notFound(err)
	}
	c.Set(eventKey{}, websocket.Message{Type: "pet.deleted", Data: map[string]string{"id": id}})
	c.Writer.WriteHeader(http.StatusNoContent)
	return nil
}

// Audit logs the outcome of the write it wraps
func (p *PetsController) Audit(c *middleware.Context, next middleware.Next) error {
	err := next()

	fields := []zap.Field{
		zap.String("handler", c.Handler),
		zap.String("path", c.Path()),
	}
	if claims, ok := auth.ClaimsFrom(c); ok {
		fields = append(fields, zap.String("user", claims.UserID))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	p.logger.Info("pet write", fields...)
	return err
}

func (p *PetsController) decode(c *middleware.Context, next middleware.Next) error {
	var in petInput
	if err := json.NewDecoder(c.Request.Body).Decode(&in); err != nil {
		return errBadRequest.Wrap(err)
	}
	c.Set(inputKey{}, in)
	return next()
}

// publish broadcasts the event recorded by a successful write
func publish(hub *websocket.Hub, logger *zap.Logger) middleware.Step {
	return func(c *middleware.Context, next middleware.Next) error {
		if msg, ok := c.Value(eventKey{}).(websocket.Message); ok {
			if err := hub.Broadcast(msg); err != nil {
				logger.Warn("pet event dropped", zap.String("type", msg.Type), zap.Error(err))
			}
		}
		return next()
	}
}

func notFound(err error) error {
	if errors.Is(err, ErrPetNotFound) {
		return errNotFound
	}
	return err
}
