// Package knowledge maps pest/disease labels to curated descriptive
// metadata and treatment recommendations. Lookups are case-insensitive
// and total: labels the curators have not catalogued yet (including the
// "Unknown" sentinel) get a generic record instead of an error.
package knowledge

import (
	"strings"
)

type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Symptoms    []string `json:"symptoms"`
	Causes      string   `json:"causes"`
	Severity    string   `json:"severity"`
}

type Recommendation struct {
	Prevention       []string `json:"prevention"`
	Treatment        []string `json:"treatment"`
	OrganicSolutions []string `json:"organic_solutions"`
}

// Base is the lookup capability the detection pipeline depends on, so the
// curated table can be swapped or extended without touching the pipeline.
type Base interface {
	DiseaseInfo(label string) Info
	Recommendations(label string) Recommendation
}

type staticBase struct {
	info            map[string]Info
	recommendations map[string]Recommendation
}

// NewStaticBase returns the built-in curated table.
func NewStaticBase() Base {
	return &staticBase{
		info: map[string]Info{
			"beetle": {
				Name:        "Beetle Infestation",
				Description: "Serangan kumbang yang merusak tanaman",
				Symptoms:    []string{"Lubang pada daun", "Kerusakan batang", "Tanaman layu"},
				Causes:      "Kumbang pemakan daun",
				Severity:    "Sedang",
			},
			"bees": {
				Name:        "Bee Activity",
				Description: "Aktivitas lebah penyerbuk",
				Symptoms:    []string{"Lebah terlihat di sekitar bunga"},
				Causes:      "Proses penyerbukan alami",
				Severity:    "Menguntungkan",
			},
			"grasshopper": {
				Name:        "Grasshopper Damage",
				Description: "Kerusakan akibat belalang",
				Symptoms:    []string{"Daun terpotong tidak beraturan"},
				Causes:      "Serangan belalang",
				Severity:    "Sedang",
			},
		},
		recommendations: map[string]Recommendation{
			"beetle": {
				Prevention:       []string{"Rotasi tanaman", "Pembersihan lahan"},
				Treatment:        []string{"Insektisida organik", "Perangkap feromon"},
				OrganicSolutions: []string{"Neem oil", "Bacillus thuringiensis"},
			},
			"bees": {
				Prevention:       []string{"Pertahankan habitat lebah"},
				Treatment:        []string{"Tidak diperlukan treatment"},
				OrganicSolutions: []string{"Tanam bunga penarik lebah"},
			},
			"grasshopper": {
				Prevention:       []string{"Pemasangan kelambu", "Pengolahan tanah"},
				Treatment:        []string{"Insektisida selektif"},
				OrganicSolutions: []string{"Semprotan bawang putih"},
			},
		},
	}
}

func (b *staticBase) DiseaseInfo(label string) Info {
	if info, ok := b.info[strings.ToLower(label)]; ok {
		return info
	}
	return Info{
		Name:        label,
		Description: "Informasi deteksi belum tersedia",
		Symptoms:    []string{"Gejala tidak diketahui"},
		Causes:      "Penyebab belum teridentifikasi",
		Severity:    "Tidak diketahui",
	}
}

func (b *staticBase) Recommendations(label string) Recommendation {
	if rec, ok := b.recommendations[strings.ToLower(label)]; ok {
		return rec
	}
	return Recommendation{
		Prevention:       []string{"Konsultasi dengan ahli pertanian"},
		Treatment:        []string{"Pemeriksaan manual diperlukan"},
		OrganicSolutions: []string{"Penggunaan pestisida organik umum"},
	}
}
