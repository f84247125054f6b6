package entity

// Identity and provenance columns of the master raw table.
const (
	ColStrainID         = "strain_id"
	ColVendor           = "vendor"
	ColSourceURL        = "source_url"
	ColArchiveKey       = "archive_key"
	ColArchiveKeysAll   = "archive_keys_all"
	ColScrapedAt        = "scraped_at"
	ColMethodsUsed      = "extraction_methods_used"
	ColCompleteness     = "data_completeness_score"
	ColStrainNameRaw    = "strain_name_raw"
	ColBreederNameRaw   = "breeder_name_raw"
	ColGeneticsRaw      = "genetics_lineage_raw"
	ColDescriptionRaw   = "description_raw"
	ColSeedTypeRaw      = "seed_type_raw"
	ColFloweringTypeRaw = "flowering_type_raw"
)

// MasterIdentityColumns lead every master raw row.
var MasterIdentityColumns = []string{
	ColStrainID, ColVendor, ColSourceURL, ColArchiveKey, ColArchiveKeysAll, ColScrapedAt,
}

// MasterDataColumns are the canonical botanical columns, in output order.
// data_completeness_score is the share of these that are filled.
var MasterDataColumns = []string{
	ColStrainNameRaw,
	ColGeneticsRaw, "sativa_percentage_raw", "indica_percentage_raw", "dominant_type_raw", ColBreederNameRaw, "generation_raw",
	"thc_content_raw", "thc_min_raw", "thc_max_raw", "thc_average_raw",
	"cbd_content_raw", "cbd_min_raw", "cbd_max_raw",
	"cbn_content_raw", "cbn_min_raw", "cbn_max_raw",
	"flowering_time_raw", "yield_indoor_raw", "yield_outdoor_raw", "height_indoor_raw", "height_outdoor_raw",
	"difficulty_raw", "climate_raw",
	"effects_all_raw", "primary_effect_raw", "flavors_all_raw", "aroma_raw", "terpenes_raw", "dominant_terpene_raw",
	ColSeedTypeRaw, ColFloweringTypeRaw, "awards_raw",
	ColDescriptionRaw,
}
