package services

import (
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voicedeskhq/voicedesk/pkg/internal/database"
	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
)

// GormCallStore is the database-backed CallStore handed to the event
// processor.
type GormCallStore struct{}

func NewGormCallStore() *GormCallStore {
	return &GormCallStore{}
}

func (v *GormCallStore) FindCallByProviderID(id string) (models.Call, error) {
	var call models.Call
	if err := database.C.
		Where(models.Call{ProviderCallID: id}).
		First(&call).Error; err != nil {
		return call, err
	} else {
		return call, nil
	}
}

func (v *GormCallStore) RecordEventWithTransition(callID uint, eventType string, payload map[string]any, fields map[string]any) error {
	return database.C.Transaction(func(tx *gorm.DB) error {
		event := models.CallEvent{
			Type:    eventType,
			Payload: datatypes.JSONMap(payload),
			CallID:  callID,
		}
		if err := tx.Save(&event).Error; err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		return tx.Model(&models.Call{}).Where("id = ?", callID).Updates(fields).Error
	})
}

func ListCall(take, offset int, direction string) ([]models.Call, error) {
	if take > 100 {
		take = 100
	}

	tx := database.C
	if len(direction) > 0 {
		tx = tx.Where(models.Call{Direction: direction})
	}

	var calls []models.Call
	if err := tx.
		Limit(take).
		Offset(offset).
		Order("created_at DESC").
		Find(&calls).Error; err != nil {
		return calls, err
	} else {
		return calls, nil
	}
}

func GetCall(id uint) (models.Call, error) {
	var call models.Call
	if err := database.C.
		Where(models.Call{BaseModel: models.BaseModel{ID: id}}).
		First(&call).Error; err != nil {
		return call, err
	} else {
		return call, nil
	}
}

func ListCallEvent(call models.Call, take, offset int) ([]models.CallEvent, error) {
	if take > 100 {
		take = 100
	}

	var events []models.CallEvent
	if err := database.C.
		Where(models.CallEvent{CallID: call.ID}).
		Limit(take).
		Offset(offset).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return events, err
	} else {
		return events, nil
	}
}

// PlaceCall asks the voice provider to dial out and records the resulting
// call with status registered. Webhooks received later resolve against this
// row; the event processor itself never creates calls.
func PlaceCall(agentID, fromNumber, toNumber string) (models.Call, error) {
	placed, err := CreateProviderCall(ProviderCallRequest{
		FromNumber:      fromNumber,
		ToNumber:        toNumber,
		OverrideAgentID: agentID,
	})
	if err != nil {
		return models.Call{}, fmt.Errorf("remote provider error: %v", err)
	}

	call := models.Call{
		ProviderCallID: placed.CallID,
		AgentID:        placed.AgentID,
		FromNumber:     fromNumber,
		ToNumber:       toNumber,
		Direction:      models.CallDirectionOutbound,
		Status:         models.CallStatusRegistered,
	}
	if err := database.C.Save(&call).Error; err != nil {
		return call, err
	}

	return call, nil
}

// RegisterInboundCall records a provider-originated call so its webhooks
// become resolvable.
func RegisterInboundCall(providerCallID, agentID, fromNumber, toNumber string) (models.Call, error) {
	call := models.Call{
		ProviderCallID: providerCallID,
		AgentID:        agentID,
		FromNumber:     fromNumber,
		ToNumber:       toNumber,
		Direction:      models.CallDirectionInbound,
		Status:         models.CallStatusRegistered,
	}
	if err := database.C.Save(&call).Error; err != nil {
		return call, err
	}

	return call, nil
}
