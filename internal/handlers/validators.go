package handlers

import (
	"sync"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/services"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the domain binding tags to gin's validator:
// wave_status, wave_action, ledger_status and shipping_status.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("wave_status", func(fl validator.FieldLevel) bool {
			return models.IsValidWaveStatus(fl.Field().String())
		})
		_ = v.RegisterValidation("wave_action", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case services.WaveActionMarkOOS, services.WaveActionRemoveOrder, services.WaveActionUpdateStatus:
				return true
			}
			return false
		})
		_ = v.RegisterValidation("ledger_status", func(fl validator.FieldLevel) bool {
			_, err := models.ParseLedgerStatus(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("shipping_status", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case models.ShippingStatusPacked, models.ShippingStatusShipped, models.ShippingStatusDelivered:
				return true
			}
			return false
		})
	})
}
