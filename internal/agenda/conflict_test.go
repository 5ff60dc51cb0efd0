package agenda

import (
	"testing"

	"github.com/google/uuid"
)

func TestIsSlotOccupied(t *testing.T) {
	nine := Clock(9 * 60)
	self := uuid.New()

	tests := []struct {
		name      string
		partition []Appointment
		at        Clock
		exclude   uuid.UUID
		want      bool
	}{
		{"empty day", nil, nine, uuid.Nil, false},
		{"confirmed at same time", []Appointment{{ID: uuid.New(), Time: nine, Status: StatusConfirmed}}, nine, uuid.Nil, true},
		{"new at same time", []Appointment{{ID: uuid.New(), Time: nine, Status: StatusNew}}, nine, uuid.Nil, true},
		{"finished still holds the slot", []Appointment{{ID: uuid.New(), Time: nine, Status: StatusFinished}}, nine, uuid.Nil, true},
		{"cancelled is ignored", []Appointment{{ID: uuid.New(), Time: nine, Status: StatusCancelled}}, nine, uuid.Nil, false},
		{"available is ignored", []Appointment{{ID: uuid.New(), Time: nine, Status: StatusAvailable}}, nine, uuid.Nil, false},
		{"one minute apart", []Appointment{{ID: uuid.New(), Time: nine + 1, Status: StatusConfirmed}}, nine, uuid.Nil, false},
		{"self excluded", []Appointment{{ID: self, Time: nine, Status: StatusConfirmed}}, nine, self, false},
		{"other still conflicts when self excluded", []Appointment{
			{ID: self, Time: nine, Status: StatusConfirmed},
			{ID: uuid.New(), Time: nine, Status: StatusPending},
		}, nine, self, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSlotOccupied(tt.partition, tt.at, tt.exclude); got != tt.want {
				t.Fatalf("IsSlotOccupied = %v, want %v", got, tt.want)
			}
		})
	}
}
