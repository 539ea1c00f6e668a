package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fed_comment_server/internal/pkg/response"
	"github.com/qs3c/fed_comment_server/internal/service"
)

type PersonHandler struct {
	persons *service.PersonService
}

func NewPersonHandler(persons *service.PersonService) *PersonHandler {
	return &PersonHandler{persons: persons}
}

// Me 当前登录用户
// GET /api/v1/persons/me
func (h *PersonHandler) Me(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}

	person, err := h.persons.Get(c.Request.Context(), personID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, person)
}

// Get 获取用户
// GET /api/v1/persons/:id
func (h *PersonHandler) Get(c *gin.Context) {
	personID, ok := paramID(c, "id")
	if !ok {
		return
	}

	person, err := h.persons.Get(c.Request.Context(), personID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, person)
}
