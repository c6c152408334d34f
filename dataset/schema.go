package dataset

// Column names of the listing tables.
const (
	ColTrainID     = "train_id"
	ColTestID      = "test_id"
	ColName        = "name"
	ColCondition   = "item_condition_id"
	ColCategory    = "category_name"
	ColBrand       = "brand_name"
	ColPrice       = "price"
	ColShipping    = "shipping"
	ColDescription = "item_description"
)

// FeatureColumns are carried into the unified frame, in this order.
var FeatureColumns = []string{
	ColName,
	ColCondition,
	ColCategory,
	ColBrand,
	ColShipping,
	ColDescription,
}

// nullableColumns may contain missing values; the rest must be present.
var nullableColumns = map[string]bool{
	ColName:        true,
	ColCategory:    true,
	ColBrand:       true,
	ColDescription: true,
}

// TrainSchema lists the columns the training table must have.
func TrainSchema() []string {
	return append([]string{ColTrainID, ColPrice}, FeatureColumns...)
}

// TestSchema lists the columns the test table must have.
func TestSchema() []string {
	return append([]string{ColTestID}, FeatureColumns...)
}
