package cleaner

// Columns added by the stages.
const (
	ColFloweringDays    = "flowering_time_days_clean"
	ColHeightIndoorCM   = "height_indoor_cm_clean"
	ColHeightOutdoorCM  = "height_outdoor_cm_clean"
	ColYieldIndoor      = "yield_indoor_clean"
	ColYieldOutdoor     = "yield_outdoor_clean"
	ColYieldIndoorUnit  = "yield_indoor_unit_clean"
	ColYieldOutdoorUnit = "yield_outdoor_unit_clean"

	ColSativaPct    = "sativa_percentage_clean"
	ColIndicaPct    = "indica_percentage_clean"
	ColRuderalisPct = "ruderalis_percentage_clean"
	ColHasAwards    = "has_awards_clean"

	ColFilialType     = "filial_type_clean"
	ColBreedingStatus = "breeding_status_clean"
	ColPhenotype      = "phenotype_marker_clean"

	ColNormalizedName  = "strain_name_normalized"
	ColAKANames        = "aka_names_clean"
	ColSimilarSpelling = "similar_spelling_clean"

	ColIsAutoflower     = "is_autoflower_clean"
	ColAutoHarvestMin   = "autoflower_seed_to_harvest_days_min_clean"
	ColAutoHarvestMax   = "autoflower_seed_to_harvest_days_max_clean"
	ColStrainNameClean  = "strain_name_clean"
	ColFloweringMinDays = "flowering_time_min_days_clean"
	ColFloweringMaxDays = "flowering_time_max_days_clean"

	ColDominantType  = "dominant_type_clean"
	ColSeedType      = "seed_type_clean"
	ColFloweringType = "flowering_type_clean"
	ColDifficulty    = "difficulty_clean"

	ColBreederClean    = "breeder_name_clean"
	ColBreederSource   = "breeder_source_clean"
	ColBreederFallback = "breeder_vendor_fallback_clean"

	ColParent1      = "parent_1_clean"
	ColParent2      = "parent_2_clean"
	ColGrandparents = "grandparents_clean"
)

// Raw columns read by the stages beyond the entity identity set.
const (
	colFloweringRaw     = "flowering_time_raw"
	colHeightIndoorRaw  = "height_indoor_raw"
	colHeightOutdoorRaw = "height_outdoor_raw"
	colYieldIndoorRaw   = "yield_indoor_raw"
	colYieldOutdoorRaw  = "yield_outdoor_raw"
	colSativaRaw        = "sativa_percentage_raw"
	colIndicaRaw        = "indica_percentage_raw"
	colDominantRaw      = "dominant_type_raw"
	colGenerationRaw    = "generation_raw"
	colDifficultyRaw    = "difficulty_raw"
	colAwardsRaw        = "awards_raw"
)

// Controlled vocabularies of stage 10d.
const (
	DominantIndica   = "Indica"
	DominantSativa   = "Sativa"
	DominantHybrid   = "Hybrid"
	DominantBalanced = "Balanced"

	SeedFeminized  = "Feminized"
	SeedAutoflower = "Autoflower"
	SeedRegular    = "Regular"

	FloweringPhotoperiod = "Photoperiod"
	FloweringAutoflower  = "Autoflower"

	DifficultyEasy      = "Easy"
	DifficultyModerate  = "Moderate"
	DifficultyDifficult = "Difficult"
)
