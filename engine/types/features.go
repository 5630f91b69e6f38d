package types

// Feature names the five comparison features shared by the clusterer, matcher and comparator
type Feature string

const (
	FeatureSpendingRatio    Feature = "spending_ratio"
	FeatureDebtRatio        Feature = "debt_ratio"
	FeatureCreditScore      Feature = "credit_score"
	FeatureTransactionCount Feature = "transaction_count"
	FeatureAvgTransaction   Feature = "avg_transaction"
)

// ComparisonFeatures lists the comparison features in their canonical order.
// Vectors built from rows and profiles always follow this order.
var ComparisonFeatures = []Feature{
	FeatureSpendingRatio,
	FeatureDebtRatio,
	FeatureCreditScore,
	FeatureTransactionCount,
	FeatureAvgTransaction,
}

// NumFeatures is the dimensionality of a feature vector
const NumFeatures = 5

// ClusterCount is the fixed number of peer clusters
const ClusterCount = 5

// Personas is the fixed cluster-to-persona lookup table. Cluster i carries Personas[i];
// the clusterer renumbers its groups from centroid characteristics so this holds after
// every run.
var Personas = [ClusterCount]string{
	"Debt Heavy",
	"Active High Spender",
	"Premium Low Risk",
	"Affluent Professional",
	"Stable Saver",
}

// PersonaFor returns the persona label of a cluster, or "Unknown" outside [0, ClusterCount)
func PersonaFor(cluster int) string {
	if cluster < 0 || cluster >= ClusterCount {
		return "Unknown"
	}
	return Personas[cluster]
}

// IncomeBrackets are the ordered yearly-income quartile labels
var IncomeBrackets = [4]string{
	"Low Income",
	"Lower Middle",
	"Upper Middle",
	"High Income",
}

// Performance status labels
const (
	StatusAbove = "Above Peer Average"
	StatusBelow = "Below Peer Average"
	StatusNear  = "Near Peer Average"
)
