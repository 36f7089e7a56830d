package catalog

import "github.com/Nexoracode/khadamat/internal/types"

// SeedSpecialists is the launch roster of verified specialists in Tehran.
func SeedSpecialists() []types.Specialist {
	return []types.Specialist{
		{
			ID:        "s1",
			Name:      "علی کریمی",
			Expertise: "برق‌کار ساختمان",
			Region:    "منطقه ۱ و ۲",
			Phone:     "۰۹۱۲۳۴۵۶۷۸۹",
			Rating:    4.8,
			Image:     "https://picsum.photos/id/64/200/200",
			Location:  types.GeoPoint{Lat: 35.7012, Lng: 51.3332},
		},
		{
			ID:        "s2",
			Name:      "رضا حسینی",
			Expertise: "لوله‌کش و تأسیسات",
			Region:    "منطقه ۳ و ۴",
			Phone:     "۰۹۳۵۰۰۰۱۱۱۱",
			Rating:    4.9,
			Image:     "https://picsum.photos/id/91/200/200",
			Location:  types.GeoPoint{Lat: 35.7219, Lng: 51.3912},
		},
		{
			ID:        "s3",
			Name:      "مریم ساداتی",
			Expertise: "تعمیرات لوازم خانگی",
			Region:    "کل تهران",
			Phone:     "۰۹۱۰۰۰۰۲۲۲۲",
			Rating:    4.7,
			Image:     "https://picsum.photos/id/177/200/200",
			Location:  types.GeoPoint{Lat: 35.7511, Lng: 51.4211},
		},
	}
}

func SeedProducts() []types.Product {
	return []types.Product{
		{
			ID:          "p1",
			Name:        "مجموعه ابزار ۱۲ عددی",
			Price:       450000,
			Description: "مناسب برای تعمیرات جزئی منزل و باز و بسته کردن پیچ‌ها.",
			Image:       "https://picsum.photos/id/1060/300/300",
			Category:    "ابزارآلات",
		},
		{
			ID:          "p2",
			Name:        "محلول لوله‌بازکن قوی",
			Price:       85000,
			Description: "رفع سریع گرفتگی لوله‌های آشپزخانه و حمام.",
			Image:       "https://picsum.photos/id/1055/300/300",
			Category:    "شوینده",
		},
		{
			ID:          "p3",
			Name:        "فیوز مینیاتوری ۲۵ آمپر",
			Price:       120000,
			Description: "قطعه ضروری برای تابلو برق ساختمان جهت امنیت بیشتر.",
			Image:       "https://picsum.photos/id/1070/300/300",
			Category:    "برقی",
		},
	}
}

func SeedUsers() []types.User {
	return []types.User{
		{ID: "u1", Name: "مهدی علوی", Phone: "۰۹۱۲۱۱۱۱۱۱۱", JoinDate: "۱۴۰۳/۰۱/۱۵", Status: types.UserStatusActive},
		{ID: "u2", Name: "سارا رضایی", Phone: "۰۹۳۵۲۲۲۲۲۲۲", JoinDate: "۱۴۰۳/۰۲/۱۰", Status: types.UserStatusActive},
		{ID: "u3", Name: "جواد یساری", Phone: "۰۹۱۰۰۰۰۳۳۳۳", JoinDate: "۱۴۰۳/۰۲/۲۵", Status: types.UserStatusInactive},
	}
}
