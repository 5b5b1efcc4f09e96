package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/vendorpos/internal/handlers/render"
	"github.com/nkiryanov/vendorpos/internal/handlers/userctx"
	"github.com/nkiryanov/vendorpos/internal/logger"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/service/account"
)

type accountResponse struct {
	ID                  uuid.UUID   `json:"id"`
	Name                string      `json:"name"`
	Email               string      `json:"email"`
	Role                models.Role `json:"role"`
	CreatedAt           time.Time   `json:"createdAt"`
	Balance             *float64    `json:"balance,omitempty"`
	LowBalanceThreshold *float64    `json:"lowBalanceThreshold,omitempty"`
	LowBalance          *bool       `json:"lowBalance,omitempty"`
}

func newAccountResponse(a models.Account) accountResponse {
	res := accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role(),
		CreatedAt: a.CreatedAt,
	}

	if v, ok := a.Vendor(); ok {
		balance := v.Balance.InexactFloat64()
		threshold := v.LowBalanceThreshold.InexactFloat64()
		low := v.IsLow()
		res.Balance = &balance
		res.LowBalanceThreshold = &threshold
		res.LowBalance = &low
	}

	return res
}

func newAccountsResponse(accounts []models.Account) []accountResponse {
	res := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		res = append(res, newAccountResponse(a))
	}
	return res
}

// Path value {id} as uuid. Writes 404 if it is not one
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "account not found", http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func handleMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, _ := userctx.FromContext(r.Context())
		render.JSON(w, newAccountResponse(account))
	})
}

func handleListVendors(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vendors, err := accountService.ListVendors(r.Context())
		if err != nil {
			renderServiceError(w, l, err)
			return
		}
		render.JSON(w, newAccountsResponse(vendors))
	})
}

func handleListUsers(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accounts, err := accountService.List(r.Context())
		if err != nil {
			renderServiceError(w, l, err)
			return
		}
		render.JSON(w, newAccountsResponse(accounts))
	})
}

func handleCreateUser(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Name                string         `json:"name" validate:"required,max=100"`
		Email               string         `json:"email" validate:"required,email"`
		Password            string         `json:"password" validate:"required,min=8"`
		Role                models.Role    `json:"role" validate:"required,oneof=admin vendor"`
		PIN                 string         `json:"pin" validate:"omitempty,pin"`
		LowBalanceThreshold *render.Amount `json:"lowBalanceThreshold"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		in := account.CreateAccount{
			Name:     data.Name,
			Email:    data.Email,
			Password: data.Password,
			Role:     data.Role,
			PIN:      data.PIN,
		}
		if data.LowBalanceThreshold != nil {
			in.LowBalanceThreshold = &data.LowBalanceThreshold.Decimal
		}

		created, err := accountService.Create(r.Context(), in)
		if err != nil {
			renderServiceError(w, l, err)
			return
		}

		render.JSONWithStatus(w, newAccountResponse(created), http.StatusCreated)
	})
}

func handleUpdateUser(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Name                *string        `json:"name" validate:"omitempty,min=1,max=100"`
		Email               *string        `json:"email" validate:"omitempty,email"`
		Password            *string        `json:"password" validate:"omitempty,min=8"`
		LowBalanceThreshold *render.Amount `json:"lowBalanceThreshold"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		in := account.UpdateAccount{
			Name:     data.Name,
			Email:    data.Email,
			Password: data.Password,
		}
		if data.LowBalanceThreshold != nil {
			in.LowBalanceThreshold = &data.LowBalanceThreshold.Decimal
		}

		updated, err := accountService.Update(r.Context(), id, in)
		if err != nil {
			renderServiceError(w, l, err)
			return
		}

		render.JSON(w, newAccountResponse(updated))
	})
}

func handleDeleteUser(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := accountService.Delete(r.Context(), id); err != nil {
			renderServiceError(w, l, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func handleChangePIN(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		OldPIN     string `json:"oldPin" validate:"required"`
		NewPIN     string `json:"newPin" validate:"required,pin"`
		ConfirmPIN string `json:"confirmPin" validate:"required,eqfield=NewPIN"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		change := &account.PinChange{Old: data.OldPIN, New: data.NewPIN, Confirm: data.ConfirmPIN}
		if err := accountService.ChangePIN(r.Context(), current.ID, change); err != nil {
			renderServiceError(w, l, err)
			return
		}

		render.JSON(w, response{Message: "PIN changed successfully"})
	})
}
