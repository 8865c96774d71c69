package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/services"
)

const genericErrorMessage = "Something went wrong!"

var badRequestErrors = []error{
	services.ErrEmailExists,
	services.ErrTripNotOpen,
	services.ErrBidNotPending,
	services.ErrInvalidAction,
	services.ErrInvalidTransition,
	services.ErrNotPayable,
	services.ErrAlreadyPaid,
	services.ErrNotPaid,
	services.ErrAlreadyRated,
	services.ErrInvalidRating,
	services.ErrIntentMismatch,
}

var notFoundErrors = []error{
	services.ErrUserNotFound,
	services.ErrTripNotFound,
	services.ErrBidNotFound,
}

// respondError maps service errors to an HTTP status and the
// {"message": ...} envelope. Anything unrecognised is a 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := genericErrorMessage

	switch {
	case errors.Is(err, services.ErrValidation):
		status, message = http.StatusBadRequest, strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": ")
	case errors.Is(err, services.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, services.ErrInvalidCredentials.Error()
	case errors.Is(err, services.ErrForbidden):
		status, message = http.StatusForbidden, services.ErrForbidden.Error()
	default:
		for _, target := range badRequestErrors {
			if errors.Is(err, target) {
				status, message = http.StatusBadRequest, target.Error()
			}
		}
		for _, target := range notFoundErrors {
			if errors.Is(err, target) {
				status, message = http.StatusNotFound, target.Error()
			}
		}
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"message": message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}

// bindJSON decodes the body into req, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "Invalid request body")
		return false
	}
	return true
}

// objectIDParam reads a hex ObjectID path parameter, answering 400 when malformed.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

func parseObjectID(c *gin.Context, field, value string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		badRequest(c, "Invalid "+field)
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseDate accepts a calendar date as sent by HTML date inputs, or RFC 3339.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
