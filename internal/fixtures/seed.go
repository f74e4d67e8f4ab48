package fixtures

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Demo data volume. Enough rows to make lists and pagination meaningful
// without slowing container first boot.
const (
	customerCount = 24
	loanEvery     = 3
)

var (
	firstNames  = []string{"Alice", "Bruno", "Carla", "Daniel", "Elena", "Farid", "Greta", "Henrik", "Ines", "Jonas", "Katya", "Liam"}
	lastNames   = []string{"Almeida", "Berg", "Costa", "Dietrich", "Eriksson", "Fischer", "Gomez", "Hansen", "Ivanova", "Jensen", "Keller", "Lindqvist"}
	occupations = []string{"engineer", "teacher", "nurse", "analyst", "designer", "merchant"}
	cities      = []string{"Lisbon", "Oslo", "Porto", "Berlin", "Stockholm", "Hamburg"}
)

type customer struct {
	id            int
	firstName     string
	lastName      string
	email         string
	phone         string
	dateOfBirth   time.Time
	monthlyIncome float64
	creditScore   int
	creditLimit   float64
	address       string
	occupation    string
}

type loan struct {
	id             int
	customerID     int
	amount         float64
	interestRate   float64
	termMonths     int
	monthlyPayment float64
	outstanding    float64
}

type payment struct {
	paymentID  string
	customerID int
	from       string
	to         string
	amount     float64
	fee        float64
	kind       string
	loanID     int
	principal  float64
	interest   float64
	penalty    float64
}

// customers generates n demo customers. Generation is index-driven so the
// same inputs always produce the same rows; only payment UUIDs vary.
func customers(n int) []customer {
	return lo.RepeatBy(n, func(i int) customer {
		first := firstNames[i%len(firstNames)]
		last := lastNames[(i+i/len(firstNames))%len(lastNames)]
		return customer{
			id:            i + 1,
			firstName:     first,
			lastName:      last,
			email:         fmt.Sprintf("%s.%s.%d@bankops.example", strings.ToLower(first), strings.ToLower(last), i+1),
			phone:         fmt.Sprintf("+351 21 %07d", 1000000+i*917),
			dateOfBirth:   time.Date(1962+(i*7)%40, time.Month(1+i%12), 1+(i*11)%28, 0, 0, 0, 0, time.UTC),
			monthlyIncome: 2400 + float64(i%7)*350,
			creditScore:   560 + (i*37)%290,
			creditLimit:   1500 + float64(i%5)*1000,
			address:       fmt.Sprintf("%d Market Street, %s", 10+i*3, cities[i%len(cities)]),
			occupation:    occupations[i%len(occupations)],
		}
	})
}

// loans gives every loanEvery-th customer one active loan.
func loans(cs []customer) []loan {
	holders := lo.Filter(cs, func(c customer, _ int) bool {
		return c.id%loanEvery == 0
	})
	return lo.Map(holders, func(c customer, i int) loan {
		amount := 5000 + float64(i%4)*7500
		term := 24 + (i%3)*24
		monthly := amount * 1.08 / float64(term)
		return loan{
			id:             i + 1,
			customerID:     c.id,
			amount:         amount,
			interestRate:   3.5 + float64(i%4)*0.75,
			termMonths:     term,
			monthlyPayment: monthly,
			outstanding:    amount - monthly*float64(1+i%6),
		}
	})
}

// payments gives every customer one transfer and every loan one repayment.
func payments(cs []customer, ls []loan) []payment {
	transfers := lo.Map(cs, func(c customer, i int) payment {
		return payment{
			paymentID:  uuid.NewString(),
			customerID: c.id,
			from:       accountNumber(c.id),
			to:         accountNumber(100 + (c.id+5)%customerCount),
			amount:     25 + float64((i*13)%400),
			fee:        0.35,
			kind:       "TRANSFER",
		}
	})

	repayments := lo.Map(ls, func(l loan, _ int) payment {
		interest := l.monthlyPayment * (l.interestRate / 100) / 12 * float64(l.termMonths)
		return payment{
			paymentID:  uuid.NewString(),
			customerID: l.customerID,
			from:       accountNumber(l.customerID),
			to:         "DE00000000000000000001",
			amount:     l.monthlyPayment,
			fee:        0,
			kind:       "LOAN_REPAYMENT",
			loanID:     l.id,
			principal:  l.monthlyPayment - interest,
			interest:   interest,
		}
	})

	return append(transfers, repayments...)
}

func accountNumber(id int) string {
	return fmt.Sprintf("PT50%016d", 1000000000+id)
}

// schemaSQL returns the banking schema staged into the postgres init
// directory as the first script.
func schemaSQL() string {
	return `-- bankctl demo schema
CREATE TABLE IF NOT EXISTS customers (
    id              BIGSERIAL PRIMARY KEY,
    first_name      VARCHAR(100) NOT NULL,
    last_name       VARCHAR(100) NOT NULL,
    email           VARCHAR(255) NOT NULL UNIQUE,
    phone           VARCHAR(32),
    date_of_birth   DATE NOT NULL,
    monthly_income  NUMERIC(12,2) NOT NULL DEFAULT 0,
    currency        CHAR(3) NOT NULL DEFAULT 'EUR',
    credit_score    INT NOT NULL DEFAULT 0,
    credit_limit    NUMERIC(12,2) NOT NULL DEFAULT 0,
    address         VARCHAR(255),
    occupation      VARCHAR(100),
    status          VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS loans (
    id              BIGSERIAL PRIMARY KEY,
    customer_id     BIGINT NOT NULL REFERENCES customers (id),
    amount          NUMERIC(12,2) NOT NULL,
    interest_rate   NUMERIC(5,2) NOT NULL,
    term_months     INT NOT NULL,
    monthly_payment NUMERIC(12,2) NOT NULL,
    outstanding     NUMERIC(12,2) NOT NULL,
    status          VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS payments (
    id               BIGSERIAL PRIMARY KEY,
    payment_id       UUID NOT NULL UNIQUE,
    customer_id      BIGINT NOT NULL REFERENCES customers (id),
    from_account     VARCHAR(34) NOT NULL,
    to_account       VARCHAR(34) NOT NULL,
    amount           NUMERIC(12,2) NOT NULL,
    fee              NUMERIC(12,2) NOT NULL DEFAULT 0,
    payment_type     VARCHAR(24) NOT NULL,
    status           VARCHAR(16) NOT NULL DEFAULT 'COMPLETED',
    loan_id          BIGINT REFERENCES loans (id),
    principal_amount NUMERIC(12,2),
    interest_amount  NUMERIC(12,2),
    penalty_amount   NUMERIC(12,2),
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_payments_customer ON payments (customer_id);
CREATE INDEX IF NOT EXISTS idx_loans_customer ON loans (customer_id);
`
}

// seedSQL renders the generated records as insert statements. Sequences are
// bumped afterwards so application inserts do not collide with seeded IDs.
func seedSQL(cs []customer, ls []loan, ps []payment) string {
	var b strings.Builder
	b.WriteString("-- bankctl demo seed data\n")

	customerRows := lo.Map(cs, func(c customer, _ int) string {
		return fmt.Sprintf("(%d, '%s', '%s', '%s', '%s', '%s', %.2f, 'EUR', %d, %.2f, '%s', '%s', 'ACTIVE')",
			c.id, c.firstName, c.lastName, c.email, c.phone,
			c.dateOfBirth.Format("2006-01-02"),
			c.monthlyIncome, c.creditScore, c.creditLimit, c.address, c.occupation)
	})
	b.WriteString("INSERT INTO customers (id, first_name, last_name, email, phone, date_of_birth, monthly_income, currency, credit_score, credit_limit, address, occupation, status) VALUES\n    ")
	b.WriteString(strings.Join(customerRows, ",\n    "))
	b.WriteString(";\n\n")

	loanRows := lo.Map(ls, func(l loan, _ int) string {
		return fmt.Sprintf("(%d, %d, %.2f, %.2f, %d, %.2f, %.2f, 'ACTIVE')",
			l.id, l.customerID, l.amount, l.interestRate, l.termMonths, l.monthlyPayment, l.outstanding)
	})
	b.WriteString("INSERT INTO loans (id, customer_id, amount, interest_rate, term_months, monthly_payment, outstanding, status) VALUES\n    ")
	b.WriteString(strings.Join(loanRows, ",\n    "))
	b.WriteString(";\n\n")

	paymentRows := lo.Map(ps, func(p payment, _ int) string {
		loanID := "NULL"
		if p.loanID > 0 {
			loanID = fmt.Sprintf("%d", p.loanID)
		}
		return fmt.Sprintf("('%s', %d, '%s', '%s', %.2f, %.2f, '%s', 'COMPLETED', %s, %.2f, %.2f, %.2f)",
			p.paymentID, p.customerID, p.from, p.to, p.amount, p.fee, p.kind,
			loanID, p.principal, p.interest, p.penalty)
	})
	b.WriteString("INSERT INTO payments (payment_id, customer_id, from_account, to_account, amount, fee, payment_type, status, loan_id, principal_amount, interest_amount, penalty_amount) VALUES\n    ")
	b.WriteString(strings.Join(paymentRows, ",\n    "))
	b.WriteString(";\n\n")

	b.WriteString("SELECT setval('customers_id_seq', (SELECT max(id) FROM customers));\n")
	b.WriteString("SELECT setval('loans_id_seq', (SELECT max(id) FROM loans));\n")
	return b.String()
}
