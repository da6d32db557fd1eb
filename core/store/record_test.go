package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFields(t *testing.T) {
	assert.Equal(t, []string{"name", "email"}, ParseFields(" name, email ,,name"))
	assert.Empty(t, ParseFields(""))
	assert.Empty(t, ParseFields(" , "))
}

func TestProject(t *testing.T) {
	record := Record{"id": int64(3), "name": "Deco Addict", "email": "deco@example.com"}

	assert.Equal(t, Record{"id": int64(3), "name": "Deco Addict"}, Project("res.partner", record, []string{"name"}))
	assert.Equal(t, Record{"id": int64(3), "phone": nil}, Project("res.partner", record, []string{"phone"}))
	assert.Equal(t, Record{"id": int64(3), "display_name": "Deco Addict"}, Project("res.partner", record, []string{"display_name"}))
	assert.Equal(t, record, Project("res.partner", record, nil))

	unnamed := Record{"id": int64(9), "quantity": 2}
	assert.Equal(t, Record{"id": int64(9), "display_name": "stock.quant,9"}, Project("stock.quant", unnamed, []string{"id", "display_name"}))

	labelled := Record{"id": int64(1), "name": "SO001", "display_name": "SO001 - Azure"}
	assert.Equal(t, "SO001 - Azure", DisplayName("sale.order", labelled))
}

func TestRecord_Copy(t *testing.T) {
	record := Record{"id": int64(1), "tags": []interface{}{"a"}, "address": map[string]interface{}{"city": "Berlin"}}
	cp := record.Copy()
	cp["tags"].([]interface{})[0] = "b"
	cp["address"].(map[string]interface{})["city"] = "Paris"
	assert.Equal(t, "a", record["tags"].([]interface{})[0])
	assert.Equal(t, "Berlin", record["address"].(map[string]interface{})["city"])
	assert.Equal(t, int64(1), cp.ID())
}
