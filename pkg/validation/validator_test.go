package validation_test

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"

	"github.com/oksasatya/ngo-backoffice/pkg/validation"
)

type registerPayload struct {
	Email           string `json:"email" binding:"required,email"`
	Username        string `json:"username" binding:"required,username"`
	Password        string `json:"password" binding:"required,pwd"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	Role            string `json:"role" binding:"omitempty,roletag"`
}

func TestToDetailsUsesJSONNames(t *testing.T) {
	validation.Init()

	err := binding.Validator.ValidateStruct(registerPayload{
		Email:           "nope",
		Username:        "ab",
		Password:        "short",
		ConfirmPassword: "other",
		Role:            "owner",
	})
	details := validation.ToDetails(err)

	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must be 3 to 64 characters without spaces or @", details["username"])
	assert.Equal(t, "min length 8", details["password"])
	assert.Equal(t, "must match password", details["confirm_password"])
	assert.Equal(t, "must be one of: root, regular", details["role"])
}

func TestRoleTagMayBeEmpty(t *testing.T) {
	validation.Init()
	err := binding.Validator.ValidateStruct(registerPayload{
		Email: "a@x.com", Username: "alice", Password: "password1", ConfirmPassword: "password1",
	})
	assert.NoError(t, err)
	assert.Nil(t, validation.ToDetails(nil))
}

type otpPayload struct {
	Code string `json:"code" binding:"required,otpcode"`
	Role string `json:"role" binding:"omitempty,profilerole"`
	ID   string `json:"id" binding:"omitempty,uuid"`
}

func TestOTPAndProfileAliases(t *testing.T) {
	validation.Init()

	details := validation.ToDetails(binding.Validator.ValidateStruct(otpPayload{Code: "12ab56", Role: "owner", ID: "x"}))
	assert.Equal(t, "must be a 6 digit code", details["code"])
	assert.Equal(t, "must be one of: root, admin, editor", details["role"])
	assert.Equal(t, "must be a valid id", details["id"])

	assert.NoError(t, binding.Validator.ValidateStruct(otpPayload{Code: "123456", Role: "editor"}))
}

func TestToDetailsInvalidJSON(t *testing.T) {
	var v map[string]any
	err := json.Unmarshal([]byte("{"), &v)
	assert.Equal(t, map[string]string{"payload": "invalid json"}, validation.ToDetails(err))
}
