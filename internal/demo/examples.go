package demo

import (
	"math/rand"

	"github.com/vishalbelsare/causact/dag"
)

var carModels = []string{"Toyota Corolla", "Jeep Wrangler", "Subaru Outback", "Kia Forte"}

// cardProb is the generating probability of a premium-card sign-up per
// car model.
var cardProb = map[string]float64{
	"Toyota Corolla": 0.19,
	"Jeep Wrangler":  0.28,
	"Subaru Outback": 0.93,
	"Kia Forte":      0.67,
}

// cardsData draws 1000 showroom visits. Both card examples share it; the
// unplated one ignores the car model column.
func cardsData() Data {
	rnd := rand.New(rand.NewSource(11))
	const n = 1000
	get := make([]float64, n)
	cm := make([]string, n)
	for i := 0; i < n; i++ {
		m := carModels[rnd.Intn(len(carModels))]
		cm[i] = m
		if rnd.Float64() < cardProb[m] {
			get[i] = 1
		}
	}
	return Data{
		Numeric: map[string][]float64{"getCard": get},
		Labels:  map[string][]string{"carModel": cm},
	}
}

var cards = &Example{
	Name:        "cards",
	Descr:       "One sign-up probability shared by every card offer",
	NumericCols: []string{"getCard"},
	synth:       cardsData,
	build: func(d Data) *dag.Graph {
		return dag.New().
			Node(dag.NodeSpec{
				Descr: "Get Card",
				Label: "y",
				RHS:   dag.Bernoulli(dag.Ref("theta")),
				Data:  d.Numeric["getCard"],
			}).
			Node(dag.NodeSpec{
				Descr:    "Card Probability",
				Label:    "theta",
				RHS:      dag.Uniform(dag.Lit(0), dag.Lit(1)),
				Children: []string{"y"},
			})
	},
}

var cardsPlated = &Example{
	Name:        "cards_plated",
	Descr:       "Sign-up probability varying by car model",
	NumericCols: []string{"getCard"},
	LabelCols:   []string{"carModel"},
	synth:       cardsData,
	build: func(d Data) *dag.Graph {
		return dag.New().
			Node(dag.NodeSpec{
				Descr: "Get Card",
				Label: "y",
				RHS:   dag.Bernoulli(dag.Ref("theta")),
				Data:  d.Numeric["getCard"],
			}).
			Node(dag.NodeSpec{
				Descr:    "Card Probability",
				Label:    "theta",
				RHS:      dag.Uniform(dag.Lit(0), dag.Lit(1)),
				Children: []string{"y"},
			}).
			Plate(dag.PlateSpec{
				Descr:       "Car Model",
				Label:       "cm",
				Members:     []string{"theta"},
				Data:        d.Labels["carModel"],
				AddDataNode: true,
			})
	},
}

var (
	chiliBrands = []string{"Cholula", "Tapatio", "Valentina"}
	chiliJudges = []string{"Avery", "Blake", "Casey", "Devon", "Emery"}
)

// chiliData has every judge rate every brand once, brand varying slowest.
func chiliData() Data {
	rnd := rand.New(rand.NewSource(23))
	heat := []float64{6.5, 5.2, 3.9}
	bias := []float64{-0.8, 0.4, 0, 1.1, -0.5}
	var rating []float64
	var brand, judge []string
	for b, bn := range chiliBrands {
		for j, jn := range chiliJudges {
			brand = append(brand, bn)
			judge = append(judge, jn)
			rating = append(rating, heat[b]+bias[j]+0.5*rnd.NormFloat64())
		}
	}
	return Data{
		Numeric: map[string][]float64{"rating": rating},
		Labels:  map[string][]string{"brand": brand, "judge": judge},
	}
}

var chili = &Example{
	Name:        "chili",
	Descr:       "Crossed brand and judge effects on hot sauce ratings",
	NumericCols: []string{"rating"},
	LabelCols:   []string{"brand", "judge"},
	synth:       chiliData,
	build: func(d Data) *dag.Graph {
		return dag.New().
			Node(dag.NodeSpec{
				Descr: "Heat Rating",
				Label: "y",
				RHS:   dag.Normal(dag.Ref("mu"), dag.Ref("sigma")),
				Data:  d.Numeric["rating"],
			}).
			Node(dag.NodeSpec{
				Descr:    "Expected Rating",
				Label:    "mu",
				RHS:      dag.Add(dag.Ref("heat"), dag.Ref("bias")),
				Children: []string{"y"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Brand Heat",
				Label:    "heat",
				RHS:      dag.Normal(dag.Lit(5), dag.Lit(2)),
				Children: []string{"mu"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Judge Bias",
				Label:    "bias",
				RHS:      dag.Normal(dag.Lit(0), dag.Lit(1)),
				Children: []string{"mu"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Rating Noise",
				Label:    "sigma",
				RHS:      dag.Exponential(dag.Lit(1)),
				Children: []string{"y"},
			}).
			Plate(dag.PlateSpec{
				Descr:   "Chili Brand",
				Label:   "brand",
				Members: []string{"heat", "mu", "y"},
				Data:    d.Labels["brand"],
			}).
			Plate(dag.PlateSpec{
				Descr:   "Taste Judge",
				Label:   "judge",
				Members: []string{"bias", "mu", "y"},
				Data:    d.Labels["judge"],
			})
	},
}

var gymNames = []string{"Bayside", "Downtown", "Eastlake", "Northgate", "Summit"}

// gymData draws 20 spin classes per gym with gym-specific baselines and
// stretch-time slopes.
func gymData() Data {
	rnd := rand.New(rand.NewSource(47))
	alpha := []float64{24, 31, 27, 22, 35}
	beta := []float64{0.35, 0.6, 0.45, 0.75, 0.5}
	const perGym = 20
	var att, stretch []float64
	var gyms []string
	for g, name := range gymNames {
		for i := 0; i < perGym; i++ {
			x := 5 + 25*rnd.Float64()
			stretch = append(stretch, x)
			gyms = append(gyms, name)
			att = append(att, alpha[g]+beta[g]*x+3*rnd.NormFloat64())
		}
	}
	return Data{
		Numeric: map[string][]float64{"attendance": att, "stretchMin": stretch},
		Labels:  map[string][]string{"gym": gyms},
	}
}

var gym = &Example{
	Name:        "gym",
	Descr:       "Per-gym attendance regressions pooled toward shared means",
	NumericCols: []string{"attendance", "stretchMin"},
	LabelCols:   []string{"gym"},
	synth:       gymData,
	build: func(d Data) *dag.Graph {
		return dag.New().
			Node(dag.NodeSpec{
				Descr: "Class Attendance",
				Label: "y",
				RHS:   dag.Normal(dag.Ref("mu"), dag.Ref("sigma")),
				Data:  d.Numeric["attendance"],
			}).
			Node(dag.NodeSpec{
				Descr:    "Stretch Minutes",
				Label:    "x",
				Data:     d.Numeric["stretchMin"],
				Children: []string{"mu"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Expected Attendance",
				Label:    "mu",
				RHS:      dag.Add(dag.Ref("alpha"), dag.Mul(dag.Ref("beta"), dag.Ref("x"))),
				Children: []string{"y"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Gym Baseline",
				Label:    "alpha",
				RHS:      dag.Normal(dag.Ref("muAlpha"), dag.Ref("sdAlpha")),
				Children: []string{"mu"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Gym Slope",
				Label:    "beta",
				RHS:      dag.Normal(dag.Ref("muBeta"), dag.Ref("sdBeta")),
				Children: []string{"mu"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Typical Baseline",
				Label:    "muAlpha",
				RHS:      dag.Normal(dag.Lit(30), dag.Lit(10)),
				Children: []string{"alpha"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Baseline Spread",
				Label:    "sdAlpha",
				RHS:      dag.HalfNormal(dag.Lit(10)),
				Children: []string{"alpha"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Typical Slope",
				Label:    "muBeta",
				RHS:      dag.Normal(dag.Lit(0), dag.Lit(2)),
				Children: []string{"beta"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Slope Spread",
				Label:    "sdBeta",
				RHS:      dag.HalfNormal(dag.Lit(1)),
				Children: []string{"beta"},
			}).
			Node(dag.NodeSpec{
				Descr:    "Attendance Noise",
				Label:    "sigma",
				RHS:      dag.HalfNormal(dag.Lit(5)),
				Children: []string{"y"},
			}).
			Plate(dag.PlateSpec{
				Descr:       "Gym",
				Label:       "gym",
				Members:     []string{"alpha", "beta"},
				Data:        d.Labels["gym"],
				AddDataNode: true,
			}).
			Plate(dag.PlateSpec{
				Descr:   "Observation",
				Label:   "i",
				Members: []string{"mu", "y"},
			})
	},
}
