package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(db)

	log.Println("Seeding completed successfully!")
}

func seedProducts(db *sql.DB) {
	products := []struct {
		Name      string
		SKU       string
		Category  string
		Price     string
		Wholesale string // empty = no wholesale price, engine falls back to the configured rate
		Stock     int
	}{
		{"Teh Botol Sosro 450ml", "BEV-TBS-450", "beverages", "5500.00", "4700.00", 240},
		{"Aqua Botol 600ml", "BEV-AQA-600", "beverages", "4000.00", "3400.00", 360},
		{"Kopi Kapal Api Special 65g", "BEV-KKA-065", "beverages", "7500.00", "6500.00", 120},
		{"Indomie Goreng", "FOO-IDM-GRG", "food", "3500.00", "2900.00", 500},
		{"Indomie Soto Mie", "FOO-IDM-STO", "food", "3200.00", "2700.00", 400},
		{"Beras Ramos 5kg", "FOO-BRS-5KG", "food", "68000.00", "62000.00", 40},
		{"Minyak Goreng Bimoli 2L", "FOO-BIM-2LT", "food", "38000.00", "34500.00", 60},
		{"Gula Pasir Gulaku 1kg", "FOO-GLK-1KG", "food", "17500.00", "15900.00", 80},
		{"Sabun Lifebuoy 110g", "CLN-LFB-110", "cleaning", "4500.00", "3800.00", 200},
		{"Rinso Anti Noda 770g", "CLN-RNS-770", "cleaning", "21500.00", "19000.00", 90},
		{"Sunlight Jeruk Nipis 755ml", "CLN-SLT-755", "cleaning", "15500.00", "13800.00", 75},
		{"Pepsodent 190g", "CRE-PPS-190", "care", "13000.00", "", 110},
		{"Shampoo Clear Menthol 160ml", "CRE-CLR-160", "care", "23500.00", "", 65},
		{"Baterai ABC AA (2 pcs)", "MSC-ABC-AA2", "misc", "12000.00", "10500.00", 150},
		{"Pulpen Standard AE7", "MSC-STD-AE7", "misc", "2500.00", "2000.00", 300},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		var wholesale sql.NullString
		if p.Wholesale != "" {
			wholesale = sql.NullString{String: p.Wholesale, Valid: true}
		}
		_, err := db.Exec(`
			INSERT INTO products (name, sku, category, sale_price, wholesale_price, stock, active)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, TRUE)
			ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name,
				category = EXCLUDED.category,
				sale_price = EXCLUDED.sale_price,
				wholesale_price = EXCLUDED.wholesale_price,
				stock = EXCLUDED.stock,
				active = TRUE,
				updated_at = NOW();
		`, p.Name, p.SKU, p.Category, p.Price, wholesale, p.Stock)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.SKU, err)
		}
	}
}
